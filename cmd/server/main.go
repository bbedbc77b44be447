package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/chenwt/key-reservation/internal/config"
	"github.com/chenwt/key-reservation/internal/database"
	"github.com/chenwt/key-reservation/internal/handler"
	"github.com/chenwt/key-reservation/internal/queue"
	"github.com/chenwt/key-reservation/internal/repository"
	"github.com/chenwt/key-reservation/internal/router"
	"github.com/chenwt/key-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("ensure schema: %v", err)
	}
	cancel()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	svc := service.NewBooking(
		repository.NewLeaseRepo(db),
		repository.NewKeyRepo(db),
		cfg.MemberPasswords,
		cfg.AuthFailDelay,
		queue.NewPublisher(),
	)

	// Background audit consumer; keeps its own reconnect loop.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, cfg, rdb,
		handler.NewRentHandler(svc),
		handler.NewCatalogHandler(svc),
		handler.NewAdminHandler(svc),
		handler.NewAuthHandler(cfg),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
