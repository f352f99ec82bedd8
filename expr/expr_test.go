package expr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MineKing9534/KORMite-sub000/dialect"
	"github.com/MineKing9534/KORMite-sub000/schema"
)

type Publisher struct {
	ID   int64 `kormite:"key;auto"`
	Name string
}

type Author struct {
	ID        int64 `kormite:"key;auto"`
	Name      string
	Publisher *Publisher `kormite:"ref"`
}

type Meta struct {
	Pages int `json:"pages"`
}

type Location struct {
	Shelf int
	Row   string
}

type Book struct {
	ID       int64 `kormite:"key;auto"`
	Title    string
	Author   *Author `kormite:"ref"`
	Related  []*Book `kormite:"ref"`
	Tags     []string
	Meta     Meta     `kormite:"json"`
	Location Location `kormite:"composite"`
}

func books(t *testing.T, driver string) *Context {
	t.Helper()
	d, ok := dialect.Get(driver)
	require.True(t, ok)
	r := schema.NewRegistry(schema.WithFeatures(d.Features()))
	var last *schema.Table
	for _, sample := range []any{Publisher{}, Author{}, Book{}} {
		desc, err := schema.Describe(sample)
		require.NoError(t, err)
		last, err = r.Build(desc, "")
		require.NoError(t, err)
	}
	return NewContext(last, d)
}

func render(t *testing.T, c *Context, n Node) string {
	t.Helper()
	s, err := n.Build(c, nil)
	require.NoError(t, err)
	return s
}

func TestComparison(t *testing.T) {
	c := books(t, "sqlite3")
	assert.Equal(t, "`book`.`title` = ?", render(t, c, Property("title").Eq("Dune")))
	assert.Equal(t, []any{"Dune"}, c.Args())

	c = books(t, "sqlite3")
	assert.Equal(t, "`book`.`id` BETWEEN ? AND ?", render(t, c, Property("id").Between(1, 5)))
	assert.Equal(t, []any{int64(1), int64(5)}, c.Args())

	c = books(t, "sqlite3")
	assert.Equal(t, "`book`.`author` IS NULL", render(t, c, Property("author").Eq(nil)))
	assert.Empty(t, c.Args())

	c = books(t, "sqlite3")
	c.Qualify = false
	assert.Equal(t, "`title` <> ?", render(t, c, Property("title").NotEq("x")))
}

func TestValueEncodedForOwner(t *testing.T) {
	c := books(t, "sqlite3")
	assert.Equal(t, "`book`.`author` = ?", render(t, c, Property("author").Eq(3)))
	assert.Equal(t, []any{int64(3)}, c.Args())

	c = books(t, "sqlite3")
	// Owner is taken from the right operand when the left has none.
	render(t, c, Eq(Value(&Author{ID: 7}), Property("author")))
	assert.Equal(t, []any{int64(7)}, c.Args())

	c = books(t, "sqlite3")
	assert.Equal(t, "LOWER(`book`.`title`) = ?", render(t, c, Eq(Lower(Property("title")), Value("dune"))))
	assert.Equal(t, []any{"dune"}, c.Args())
}

func TestJoinGraph(t *testing.T) {
	c := books(t, "sqlite3")
	w := AllOf(
		Property("author->publisher->name").Eq("A"),
		Property("author->name").Eq("x"),
		Property("author->publisher->id").Gt(0),
	)
	assert.Equal(t,
		"(`book->author->publisher`.`name` = ?) AND (`book->author`.`name` = ?) AND (`book->author->publisher`.`id` > ?)",
		render(t, c, w))

	require.Len(t, c.Joins(), 2)
	assert.Equal(t, "author", c.Joins()[0].Path)
	assert.Equal(t, "author->publisher", c.Joins()[1].Path)
	assert.Equal(t, 2, c.Joins()[1].Depth)

	joins, err := c.JoinSQL()
	require.NoError(t, err)
	assert.Equal(t,
		" LEFT JOIN `author` AS `book->author` ON `book->author`.`id` = `book`.`author`"+
			" LEFT JOIN `publisher` AS `book->author->publisher` ON `book->author->publisher`.`id` = `book->author`.`publisher`",
		joins)
}

func TestWhereAlgebra(t *testing.T) {
	w := Property("title").Eq("x")
	want := render(t, books(t, "sqlite3"), w)

	for _, combined := range []Where{
		w.And(Where{}),
		Where{}.And(w),
		w.Or(Where{}),
		AllOf(w),
		AnyOf(Where{}, w, Where{}),
	} {
		assert.Equal(t, want, render(t, books(t, "sqlite3"), combined))
	}

	assert.True(t, AllOf().Empty())
	assert.True(t, AnyOf().Empty())
	assert.True(t, AllOf(Where{}, Where{}).Empty())
	assert.Equal(t, "", render(t, books(t, "sqlite3"), AnyOf()))

	assert.Equal(t, "1 = 0", render(t, books(t, "sqlite3"), Not(Where{})))
	assert.Equal(t, "NOT (`book`.`title` = ?)", render(t, books(t, "sqlite3"), Not(w)))
	assert.Equal(t, "(`book`.`id` = ?) OR (`book`.`id` = ?)",
		render(t, books(t, "sqlite3"), Property("id").Eq(1).Or(Property("id").Eq(2))))

	assert.Equal(t, "1 = 0", render(t, books(t, "sqlite3"), Property("id").In()))
	c := books(t, "sqlite3")
	assert.Equal(t, "`book`.`id` IN (?, ?)", render(t, c, Property("id").In(1, 2)))
	assert.Equal(t, []any{int64(1), int64(2)}, c.Args())
}

func TestNumberedPlaceholdersReuseIdentity(t *testing.T) {
	c := books(t, "postgres")
	v := Value("x")
	w := AnyOf(Eq(Property("title"), v), Eq(Lower(Property("title")), v))
	assert.Equal(t, `("book"."title" = $1) OR (LOWER("book"."title") = $1)`, render(t, c, w))
	assert.Equal(t, []any{"x"}, c.Args())
	assert.Len(t, c.Named(), 1)

	c = books(t, "sqlite3")
	render(t, c, w)
	assert.Equal(t, []any{"x", "x"}, c.Args())
}

func TestValueRebindsPerColumn(t *testing.T) {
	c := books(t, "postgres")
	v := Value(2.5)
	w := AnyOf(Eq(Property("id"), v), Eq(Property("title"), v), Eq(Property("id"), v))
	assert.Equal(t, `("book"."id" = $1) OR ("book"."title" = $2) OR ("book"."id" = $1)`, render(t, c, w))
	assert.Equal(t, []any{int64(2), 2.5}, c.Args())
	assert.Len(t, c.Named(), 2)
}

func TestConcatAssociative(t *testing.T) {
	a, b, d := Property("title"), Unsafe("||"), Value("!")
	left := render(t, books(t, "sqlite3"), Concat(Concat(a, b), d))
	right := render(t, books(t, "sqlite3"), Concat(a, Concat(b, d)))
	assert.Equal(t, "`book`.`title` || ?", left)
	assert.Equal(t, left, right)
}

func TestContains(t *testing.T) {
	c := books(t, "sqlite3")
	assert.Equal(t,
		"EXISTS (SELECT 1 FROM json_each(`book`.`related`) WHERE json_each.value = ?)",
		render(t, c, Property("related").Contains(&Book{ID: 2})))
	assert.Equal(t, []any{int64(2)}, c.Args())

	c = books(t, "postgres")
	assert.Equal(t, `$1 = ANY("book"."tags")`, render(t, c, Property("tags").Contains("go")))
	assert.Equal(t, []any{"go"}, c.Args())

	_, err := Property("title").Contains("x").Build(books(t, "sqlite3"), nil)
	assert.ErrorIs(t, err, schema.ErrIllegalPath)
}

func TestSubColumns(t *testing.T) {
	c := books(t, "sqlite3")
	assert.Equal(t, "json_extract(`book`.`meta`, '$.pages') > ?", render(t, c, Property("meta.Pages").Gt(100)))
	assert.Equal(t, []any{int64(100)}, c.Args())

	c = books(t, "sqlite3")
	assert.Equal(t, "`book`.`location_shelf` = ?", render(t, c, Property("location.shelf").Eq(4)))
	assert.Equal(t, []any{int64(4)}, c.Args())

	c = books(t, "postgres")
	assert.Equal(t, `"book"."meta" #>> '{pages}' = $1`, render(t, c, Property("meta.pages").Eq("3")))
}

func TestPathErrors(t *testing.T) {
	cases := []struct {
		path string
		err  error
	}{
		{"nope", schema.ErrColumnNotFound},
		{"title->name", schema.ErrIllegalPath},
		{"related->title", schema.ErrIllegalPath},
		{"author.name", schema.ErrIllegalPath},
		{"author->nope", schema.ErrColumnNotFound},
		{"location", schema.ErrIllegalPath},
		{"location.nope", schema.ErrColumnNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			_, err := Property(tc.path).Eq(1).Build(books(t, "sqlite3"), nil)
			assert.ErrorIs(t, err, tc.err)
		})
	}

	c := books(t, "sqlite3")
	c.AllowJoins = false
	_, err := Property("author->name").Eq("x").Build(c, nil)
	assert.ErrorIs(t, err, ErrJoinNotAllowed)
	assert.Empty(t, c.Joins())
}

func TestOrder(t *testing.T) {
	c := books(t, "sqlite3")
	s, err := Property("title").Desc().Build(c)
	require.NoError(t, err)
	assert.Equal(t, "`book`.`title` DESC", s)

	s, err = Asc(Property("author->name")).Build(c)
	require.NoError(t, err)
	assert.Equal(t, "`book->author`.`name` ASC", s)
	assert.Len(t, c.Joins(), 1)
}

func TestIdentifierLimit(t *testing.T) {
	long := strings.Repeat("b", 60)
	for _, tc := range []struct {
		driver string
		err    bool
	}{
		{"postgres", true},
		{"mysql", false},
		{"sqlite3", false},
	} {
		t.Run(tc.driver, func(t *testing.T) {
			d, ok := dialect.Get(tc.driver)
			require.True(t, ok)
			r := schema.NewRegistry(schema.WithFeatures(d.Features()))
			var last *schema.Table
			for i, sample := range []any{Publisher{}, Author{}, Book{}} {
				desc, err := schema.Describe(sample)
				require.NoError(t, err)
				name := ""
				if i == 2 {
					name = long
				}
				last, err = r.Build(desc, name)
				require.NoError(t, err)
			}
			c := NewContext(last, d)
			render(t, c, Property("author->name").Eq("x"))

			_, err := c.JoinSQL()
			if tc.err {
				assert.ErrorIs(t, err, ErrIdentifierTooLong)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
