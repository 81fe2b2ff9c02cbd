package main

import (
	"log"

	"github.com/ariefcatur/exam-vouchers/internal/config"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("migrations applied")
}
