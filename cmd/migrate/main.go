package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"gamekeys-be/internal/config"
	"gamekeys-be/internal/db"
	"gamekeys-be/internal/logger"

	"go.uber.org/zap"
)

var (
	loadConfigFunc = config.LoadConfig
	openDBFunc     = db.NewDatabase
	migrateFunc    = db.Migrate
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}
}

type options struct {
	command string
	args    []string
}

func parseArgs(args []string) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cmd := fs.String("cmd", "up", "goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *cmd == "" {
		return options{}, errors.New("migrate: -cmd must not be empty")
	}
	return options{command: *cmd, args: fs.Args()}, nil
}

func run(ctx context.Context, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfigFunc()
	if err != nil {
		return err
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("migrate: STORAGE_BACKEND is %q, migrations need postgres", cfg.StorageBackend)
	}

	conn, err := openDBFunc(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return migrate(ctx, conn, opts)
}

func migrate(ctx context.Context, conn *sql.DB, opts options) error {
	logger.L().Info("running migrations",
		zap.String("command", opts.command),
		zap.Strings("args", opts.args),
	)
	if err := migrateFunc(ctx, conn, opts.command, opts.args...); err != nil {
		return err
	}
	logger.L().Info("migrations finished", zap.String("command", opts.command))
	return nil
}
