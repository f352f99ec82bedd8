package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/MineKing9534/KORMite-sub000/expr"
)

func BenchmarkInsert(b *testing.B) {
	l := newLibrary(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := l.publishers.Insert(ctx, &Publisher{Name: fmt.Sprintf("P%d", i)})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSelectJoined(b *testing.B) {
	l := newLibrary(b)
	l.seed(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		got, err := l.books.Select().
			Where(expr.Property("author->publisher->name").Eq("Beta")).
			All(ctx)
		if err != nil {
			b.Fatal(err)
		}
		if len(got) != 3 {
			b.Fatalf("got %d books", len(got))
		}
	}
}

func BenchmarkRender(b *testing.B) {
	l := newLibrary(b)
	for i := 0; i < b.N; i++ {
		q := l.books.Select().
			Where(expr.Property("author->name").Eq("Ann")).
			OrderBy(expr.Property("title").Desc()).
			Limit(10)
		if _, _, err := q.SQL(); err != nil {
			b.Fatal(err)
		}
	}
}
