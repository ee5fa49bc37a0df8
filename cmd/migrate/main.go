// Command migrate applies or rolls back database migrations.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"

	"github.com/joho/godotenv"
)

func main() {
	rollback := flag.Int("rollback", 0, "roll back the migration with this version")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitMiddleware(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *rollback > 0 {
		if err := database.RollbackMigration(ctx, db, *rollback); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Printf("Rolled back migration %d", *rollback)
		return
	}

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}
	log.Println("Migrations complete")
}
