package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"minigames/internal/database"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		getEnv("BLUEPRINT_DB_USERNAME", "postgres"),
		getEnv("BLUEPRINT_DB_PASSWORD", "postgres"),
		getEnv("BLUEPRINT_DB_HOST", "localhost"),
		getEnv("BLUEPRINT_DB_PORT", "5432"),
		getEnv("BLUEPRINT_DB_DATABASE", "minigames"),
		getEnv("BLUEPRINT_DB_SCHEMA", "public"),
	)

	migrationsPath := getEnv("MIGRATIONS_PATH", "./migrations")

	if command == "create" {
		if len(os.Args) < 3 {
			logrus.Fatal("usage: migrate create <migration_name>")
		}
		createMigration(migrationsPath, os.Args[2])
		return
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	switch command {
	case "up":
		logrus.Info("running migrations")
		if err := database.RunMigrations(db, migrationsPath); err != nil {
			logrus.WithError(err).Fatal("migration failed")
		}
		logrus.Info("migrations completed")

	case "down":
		logrus.Info("rolling back last migration")
		if err := database.RollbackMigration(db, migrationsPath); err != nil {
			logrus.WithError(err).Fatal("rollback failed")
		}
		logrus.Info("rollback completed")

	case "version":
		version, dirty, err := database.GetMigrationVersion(db, migrationsPath)
		if err != nil {
			logrus.WithError(err).Fatal("failed to get version")
		}
		entry := logrus.WithField("version", version)
		if dirty {
			entry.Warn("database is dirty, needs manual intervention")
		} else {
			entry.Info("current version")
		}

	default:
		logrus.Errorf("unknown command: %s", command)
		printUsage()
		os.Exit(1)
	}
}

func createMigration(dir, name string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read migrations directory")
	}

	ups := 0
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".sql" {
			ups++
		}
	}
	// Each migration has an up and a down file.
	nextVersion := ups/2 + 1

	upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", nextVersion, name))
	downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", nextVersion, name))

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n-- Add your SQL here\n", name, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		logrus.WithError(err).Fatal("failed to create up migration")
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n-- Add your rollback SQL here\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		logrus.WithError(err).Fatal("failed to create down migration")
	}

	logrus.WithFields(logrus.Fields{"up": upFile, "down": downFile}).Info("created migration files")
}

func printUsage() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate up              Run all pending migrations")
	fmt.Println("  migrate down            Rollback the last migration")
	fmt.Println("  migrate version         Show current migration version")
	fmt.Println("  migrate create <name>   Create a new migration file")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BLUEPRINT_DB_HOST       Database host (default: localhost)")
	fmt.Println("  BLUEPRINT_DB_PORT       Database port (default: 5432)")
	fmt.Println("  BLUEPRINT_DB_DATABASE   Database name (default: minigames)")
	fmt.Println("  BLUEPRINT_DB_USERNAME   Database user (default: postgres)")
	fmt.Println("  BLUEPRINT_DB_PASSWORD   Database password (default: postgres)")
	fmt.Println("  MIGRATIONS_PATH         Path to migrations (default: ./migrations)")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
