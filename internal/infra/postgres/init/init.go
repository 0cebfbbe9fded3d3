package infra_pg_init

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/humanbelnik/senryu/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

//go:embed schema.sql
var schema string

func MustEstablishConn(cfg config.Postgres) *sqlx.DB {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}

	if cfg.Migrate {
		if err := Migrate(context.Background(), db); err != nil {
			log.WithError(err).Fatal("failed to apply schema")
		}
	}

	return db
}

// Migrate applies the bundled schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres schema is up to date")
	return nil
}
