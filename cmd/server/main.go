package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/config"
	"github.com/chiefnavajo/aimoviez-sub010/internal/db"
	"github.com/chiefnavajo/aimoviez-sub010/internal/handler"
	"github.com/chiefnavajo/aimoviez-sub010/internal/middleware"
	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
	"github.com/chiefnavajo/aimoviez-sub010/internal/router"
	"github.com/chiefnavajo/aimoviez-sub010/internal/service"
)

func main() {
	cfg := config.Load()

	middleware.InitLogger(cfg.LogLevel, "aimoviez-api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to configure redis: %v", err)
	}
	defer rdb.Close()

	// Repositories
	voteRepo := repository.NewVoteRepo(pool)
	slotRepo := repository.NewSlotRepo(pool)
	lockRepo := repository.NewLockRepo(pool)
	flagRepo := repository.NewFlagRepo(pool)

	// Services
	queue := service.NewQueue(rdb, cfg.OrphanTimeout)
	counters := service.NewCounterCache(rdb)
	validator := service.NewValidator(rdb)
	recorder := service.NewRecorder(rdb, queue, counters, cfg.DedupTTL, cfg.DailyTTL)
	breaker := service.NewBreaker("vote-fast-path", cfg.BreakerFailures, cfg.BreakerCooldown)
	flags := service.NewFlagService(rdb, flagRepo, cfg.FlagTTL)
	slots := service.NewSlotService(slotRepo, rdb, cfg.VotingDuration, cfg.SlotStateTTL, cfg.FreezeTTL)
	voteSvc := service.NewVoteService(validator, recorder, breaker, flags, voteRepo, slots, rdb, cfg.DailyVoteLimit)

	notifier := service.NewNotifier(cfg.AuditWebhookURL)
	go notifier.Start(ctx)

	locker := service.NewLockService(lockRepo, cfg.LockLeaseTTL)
	drain := service.NewDrainWorker(queue, voteRepo, notifier, cfg.DrainBatchSize, cfg.MaxEventRetries)
	reconciler := service.NewReconciler(counters, voteRepo)

	handler.InitMetrics(pool, queue, breaker)

	app := fiber.New(fiber.Config{
		AppName:      "AiMoviez API",
		ServerHeader: "AiMoviez",
	})

	router.Setup(app, &router.Handlers{
		Vote:    handler.NewVoteHandler(voteSvc),
		Counter: handler.NewCounterHandler(counters, voteRepo, slots),
		Jobs:    handler.NewJobsHandler(locker, drain, reconciler, slots),
		Health:  handler.NewHealthHandler(pool, rdb, queue),
	}, cfg.CORSOrigins, cfg.JobSecret)

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("AiMoviez vote backend starting on :%s (env=%s)", cfg.Port, cfg.Environment)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
