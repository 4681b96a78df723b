// Package main loads branch spreadsheet exports (xlsx or csv) into their
// all-text source tables.
//
// Usage:
//
//	seed -source muttathara=exports/muttathara.xlsx -source palayam=exports/palayam.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"salesbi/internal/config"
	"salesbi/internal/domain/pipeline"
	"salesbi/internal/infrastructure/spreadsheet"
	"salesbi/internal/infrastructure/storage/postgres"
	"salesbi/pkg/logger"
)

// sourceFlags collects repeated -source name=path values.
type sourceFlags map[string]string

func (s sourceFlags) String() string {
	parts := make([]string, 0, len(s))
	for name, path := range s {
		parts = append(parts, name+"="+path)
	}
	return strings.Join(parts, ",")
}

func (s sourceFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	s[name] = path
	return nil
}

func main() {
	sources := sourceFlags{}
	configPath := flag.String("config", os.Getenv("SALESBI_CONFIG"), "path to the YAML configuration file")
	truncate := flag.Bool("truncate", false, "empty each source table before loading")
	flag.Var(sources, "source", "source name and file, as name=path (repeatable)")
	flag.Parse()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if len(sources) == 0 {
		log.Fatal("at least one -source name=path is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Database.PoolConfig())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	tables := make(map[string]string, len(cfg.Pipeline.Sources))
	for _, spec := range cfg.Pipeline.Sources {
		tables[spec.Name] = spec.Table
	}

	txManager := postgres.NewTxManager(pool)
	inserter := postgres.NewBatchInserter(txManager)

	for name, path := range sources {
		table, ok := tables[name]
		if !ok {
			log.Fatalw("unknown source", "source", name, "known", knownSources(cfg.Pipeline.Sources))
		}
		n, err := seedSource(ctx, txManager, inserter, table, path, *truncate)
		if err != nil {
			log.Fatalw("failed to seed source", "source", name, "path", path, "error", err)
		}
		log.Infow("source loaded", "source", name, "table", table, "rows", n)
	}

	log.Info("seeding completed successfully")
}

func knownSources(specs []pipeline.SourceSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

func seedSource(ctx context.Context, txManager *postgres.TxManager, inserter *postgres.BatchInserter, table, path string, truncate bool) (int64, error) {
	sheet, err := spreadsheet.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var loaded int64
	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txManager.GetQuerier(ctx)
		if err := postgres.CreateSourceTable(ctx, q, table, sheet.Header); err != nil {
			return err
		}
		if truncate {
			if _, err := q.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
		}

		rows := make(chan []any, 100)
		errc := make(chan error, 1)
		go func() {
			defer close(rows)
			for _, r := range sheet.Rows {
				select {
				case rows <- textRow(r):
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}()

		n, err := inserter.CopyFromRows(ctx, table, sheet.Header, rows, errc)
		if err != nil {
			// unblock the producer
			for range rows {
			}
			return fmt.Errorf("copy into %s: %w", table, err)
		}
		loaded = n
		return nil
	})
	return loaded, err
}

// textRow maps empty cells to NULL, the way the exports leave missing values.
func textRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		if c == "" {
			out[i] = nil
			continue
		}
		out[i] = c
	}
	return out
}

