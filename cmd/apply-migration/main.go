package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/database"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/migrations"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print statements without executing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.Log.Level, "console", "apply-migration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	all, err := migrations.All()
	if err != nil {
		log.Fatal("failed to load migrations", zap.Error(err))
	}

	if *dryRun {
		for _, m := range all {
			for _, stmt := range migrations.Statements(m.SQL) {
				fmt.Printf("-- %s\n%s;\n\n", m.Name, stmt)
			}
		}
		return
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("cannot connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, m := range all {
		stmts := migrations.Statements(m.SQL)
		err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
			for i, stmt := range stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement %d/%d: %w", i+1, len(stmts), err)
				}
			}
			return nil
		})
		if err != nil {
			log.Fatal("migration failed", zap.String("migration", m.Name), zap.Error(err))
		}
		log.Info("migration applied", zap.String("migration", m.Name), zap.Int("statements", len(stmts)))
	}
	log.Info("all migrations applied", zap.Int("count", len(all)))
}
