// Command kormite-gen reads the tables of a live database and writes one Go
// file per table holding a kormite entity struct, its property path
// constants and a registration helper.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/MineKing9534/KORMite-sub000/logger"
)

var (
	driverName = flag.String("driver", "sqlite3", "database driver (sqlite3, sqlite, mysql, postgres)")
	dsn        = flag.String("dsn", "", "data source name")
	tableName  = flag.String("table", "", "only generate this table")
	pkgName    = flag.String("pkg", "models", "package name of the generated code")
	outDir     = flag.String("out", "./models", "output directory")
	overwrite  = flag.Bool("overwrite", false, "overwrite existing files")
	workers    = flag.Int("workers", 4, "tables generated in parallel")
	verbose    = flag.Bool("v", false, "log every statement")
)

func main() {
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "usage: kormite-gen -dsn <dsn> [options]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logger.NewStdLogger()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logger.LogLevelDebug)
	}
	if err := run(log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sql.Open(*driverName, *dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	in, err := newInspector(*driverName, db, log)
	if err != nil {
		return err
	}

	var tables []string
	if *tableName != "" {
		tables = []string{*tableName}
	} else if tables, err = in.Tables(ctx); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(*workers, 1))
	for _, name := range tables {
		eg.Go(func() error {
			if err := writeTable(ctx, in, name, log); err != nil {
				return fmt.Errorf("table %s: %w", name, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.Info("generated %d tables into %s", len(tables), *outDir)
	return nil
}

func writeTable(ctx context.Context, in *inspector, name string, log logger.Logger) error {
	fileName := filepath.Join(*outDir, strings.ToLower(name)+".go")
	if _, err := os.Stat(fileName); err == nil && !*overwrite {
		log.Warn("%s exists, skipped (use -overwrite)", fileName)
		return nil
	}

	t, err := in.Table(ctx, name)
	if err != nil {
		return err
	}
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := generate(*pkgName, t).Render(f); err != nil {
		return err
	}
	log.Info("%s -> %s", name, fileName)
	return nil
}
