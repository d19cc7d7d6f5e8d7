// Command seed loads the student, teacher and proposal registry into the database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"thesis-service/internal/seed"
	"thesis-service/pkg/config"
	"thesis-service/pkg/database"
	"thesis-service/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	file := flags.StringP("file", "f", "registry.yaml", "YAML fixture with students, teachers, proposals and companies")
	migrate := flags.Bool("migrate", true, "create or update tables before seeding")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.InitLogger(&logger.LogConfig{Level: cfg.Log.Level, Environment: cfg.Server.Env, ServiceName: "thesis-seed"}); err != nil {
		return err
	}
	log := logger.GetLogger()
	defer log.Sync()

	fixture, err := seed.LoadFile(*file)
	if err != nil {
		return err
	}

	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		return err
	}
	if *migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	counts, err := seed.Apply(context.Background(), db, fixture)
	if err != nil {
		return err
	}
	log.Info("Registry seeded",
		zap.String("file", *file),
		zap.Int("students", counts.Students),
		zap.Int("teachers", counts.Teachers),
		zap.Int("thesis_proposals", counts.ThesisProposals),
		zap.Int("companies", counts.Companies))
	return nil
}
