// Command migrate applies the embedded schema migrations.
//
//	migrate up
//	migrate down [n|all]
//	migrate version
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ariefcatur/go-stock-ledger/internal/config"
	"github.com/ariefcatur/go-stock-ledger/internal/logging"
	"github.com/ariefcatur/go-stock-ledger/internal/postgres"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(os.Args[1:], cfg.PostgresDSN, log); err != nil {
		log.Error("migrate", zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, dsn string, log *zap.Logger) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	m, err := postgres.NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch cmd {
	case "up":
		return m.Up()
	case "down":
		steps := 1
		switch {
		case len(args) > 1 && args[1] == "all":
			steps = 0
		case len(args) > 1:
			if steps, err = strconv.Atoi(args[1]); err != nil || steps <= 0 {
				return fmt.Errorf("down: steps must be a positive integer or all, got %q", args[1])
			}
		}
		return m.Down(steps)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down [n] or version)", cmd)
	}
}
