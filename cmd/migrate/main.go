package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"bartbot/internal/storage/ch"
	"bartbot/migrations"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	driver := getEnv("DB_DRIVER", "clickhouse")

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// New migrations are written to the source tree, not the embedded copy
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		if _, ok := migrations.Dialects[driver]; !ok {
			log.Fatalf("No migrations for DB_DRIVER %q", driver)
		}
		migrationName := os.Args[2]
		if err := goose.Create(nil, filepath.Join("migrations", driver), migrationName, "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("Created migration: %s", migrationName)
		return
	}

	db, err := open(driver)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Printf("Connected to %s successfully", driver)

	migrationsDir, err := migrations.Setup(driver)
	if err != nil {
		log.Fatal(err)
	}

	// Run goose command
	log.Printf("Running migrations: %s", command)
	switch command {
	case "up":
		if err := goose.Up(db, migrationsDir); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "down":
		if err := goose.Down(db, migrationsDir); err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		log.Println("Rollback completed successfully")
	case "status":
		if err := goose.Status(db, migrationsDir); err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
	case "version":
		version, err := goose.GetDBVersion(db)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current migration version: %d", version)
	default:
		log.Fatalf("Unknown command: %s. Available commands: up, down, status, version, create", command)
	}
}

// open connects to the database selected by DB_DRIVER
func open(driver string) (*sql.DB, error) {
	switch driver {
	case "clickhouse":
		port, err := strconv.Atoi(getEnv("CLICKHOUSE_PORT", "9000"))
		if err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		return clickhouse.OpenDB(ch.Options(
			getEnv("CLICKHOUSE_HOST", "localhost"),
			port,
			getEnv("CLICKHOUSE_DATABASE", "default"),
			getEnv("CLICKHOUSE_USER", "default"),
			getEnv("CLICKHOUSE_PASSWORD", ""),
			getEnv("CLICKHOUSE_USE_TLS", "false") == "true",
		)), nil
	case "sqlite":
		return sql.Open("sqlite", getEnv("SQLITE_PATH", "bartbot.db"))
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
