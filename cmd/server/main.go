package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/sribagavath/sbb-server/internal/cart"
	"github.com/sribagavath/sbb-server/internal/config"
	"github.com/sribagavath/sbb-server/internal/database"
	"github.com/sribagavath/sbb-server/internal/handler"
	"github.com/sribagavath/sbb-server/internal/model"
	"github.com/sribagavath/sbb-server/internal/queue"
	"github.com/sribagavath/sbb-server/internal/repository"
	"github.com/sribagavath/sbb-server/internal/router"
	"github.com/sribagavath/sbb-server/internal/service"
	"github.com/sribagavath/sbb-server/internal/stream"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable: carts fall back to memory, cache and rate limiting off")
	}

	var cartStore cart.Store
	if rdb != nil {
		cartStore = cart.NewRedisStore(rdb)
	} else {
		cartStore = cart.NewMemoryStore()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	admins := repository.NewAdminRepo(db)
	books := repository.NewBookRepo(db)
	programs := repository.NewProgramRepo(db)
	schedules := repository.NewScheduleRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	receipts := repository.NewReceiptRepo(db)
	statsRepo := repository.NewStatsRepo(db)

	hub := stream.NewHub()
	stats := service.NewStatsService(statsRepo, rdb, cfg.GeoLookupURL)

	publish := func(tx model.Transaction) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue.PublishOrderRecorded(ctx, cfg.AMQPQueue, queue.OrderRecordedEvent{
			TransactionID: tx.ID,
			ItemType:      string(tx.ItemType),
			ItemName:      tx.ItemName,
			Amount:        tx.Amount,
			Status:        string(tx.Status),
			UserID:        tx.Owner.UserID,
			DeviceID:      tx.Owner.DeviceID,
			RecordedAt:    tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	txs := service.NewTransactionService(txRepo, receipts, stats, hub, publish)

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go queue.StartOrderConsumer(consumerCtx, cfg.AMQPQueue)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, router.Deps{
		Cfg:         cfg,
		Auth:        handler.NewAuthHandler(cfg, users, tokens, stats),
		Catalog:     handler.NewCatalogHandler(books, programs, schedules),
		Cart:        handler.NewCartHandler(cartStore, books),
		Checkout:    handler.NewCheckoutHandler(txs, books, programs, cartStore, rdb),
		UserOrders:  handler.NewUserOrdersHandler(txRepo, txs, hub),
		AdminOrders: handler.NewAdminOrdersHandler(txRepo, txs, hub),
		AdminAccess: handler.NewAdminAccessHandler(admins, users),
		AdminCat:    handler.NewAdminCatalogHandler(books, programs, schedules, txRepo, stats),
		Stats:       handler.NewStatsHandler(stats),
		Admins:      admins,
		Redis:       rdb,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
