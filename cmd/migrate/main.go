package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/railtatkal/tatkal-backend/internal/config"
	"github.com/railtatkal/tatkal-backend/internal/database"
)

// Tables in foreign key order, children first
var tables = []string{
	"payment_audits",
	"payment_transactions",
	"bookings",
	"profiles",
}

func main() {
	var (
		dbURLFlag string
		printOnly bool
		reset     bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&printOnly, "print", false, "print the schema and exit")
	flag.BoolVar(&reset, "reset", false, "truncate all booking data after migrating")
	flag.Parse()

	if printOnly {
		fmt.Print(database.Schema())
		return
	}

	// Optional .env in the working directory
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	// Minimal database config without loading full app config
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("Schema applied.")

	if reset {
		if _, err := db.ExecContext(ctx, "TRUNCATE TABLE payment_audits, payment_transactions, bookings, profiles RESTART IDENTITY CASCADE"); err != nil {
			log.Fatalf("failed to truncate tables: %v", err)
		}
		fmt.Println("All booking data cleared.")
	}

	fmt.Println("Row counts:")
	for _, t := range tables {
		var count int
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
