package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "pos-backend/internal/adapters/web"
	"pos-backend/internal/core"
	"pos-backend/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	sequences := core.NewSequenceService(pool)
	svc := webAdapter.Services{
		Products:  core.NewProductService(pool),
		Parties:   core.NewPartyService(pool),
		Billing:   core.NewBillingService(pool, sequences),
		Purchases: core.NewPurchaseService(pool, sequences),
		Ledger:    core.NewLedgerService(pool, sequences),
		Returns:   core.NewReturnsService(pool, sequences),
		Expenses:  core.NewExpenseService(pool),
		Reports:   core.NewReportingService(pool),
		Audit:     core.NewAuditService(pool),
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
