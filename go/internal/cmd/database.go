package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/dbconfig"
	"github.com/mcdev12/auctionhouse/go/internal/store"
)

func setupDatabase(ctx context.Context, dbCfg dbconfig.Config) (*sql.DB, *store.Postgres, error) {
	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pg := store.NewPostgres(database)
	if err := pg.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return database, pg, nil
}
