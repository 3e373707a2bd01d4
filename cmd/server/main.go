package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/peer-rating-service/internal/config"
	"github.com/iliyamo/peer-rating-service/internal/database"
	"github.com/iliyamo/peer-rating-service/internal/handler"
	"github.com/iliyamo/peer-rating-service/internal/hasher"
	"github.com/iliyamo/peer-rating-service/internal/mailer"
	"github.com/iliyamo/peer-rating-service/internal/queue"
	"github.com/iliyamo/peer-rating-service/internal/repository"
	"github.com/iliyamo/peer-rating-service/internal/router"
	"github.com/iliyamo/peer-rating-service/internal/service"
	"github.com/iliyamo/peer-rating-service/internal/storage"
	"github.com/iliyamo/peer-rating-service/internal/token"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	h, err := hasher.New(hasher.Config{
		Algorithm:  cfg.HashAlgorithm,
		LocalSalt:  cfg.LocalSalt,
		Iterations: cfg.HashIterations,
		KeyLen:     cfg.HashKeyLen,
	})
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}

	userRepo := repository.NewUserRepo(db)
	voteRepo := repository.NewVoteRepo(db)
	tokenRepo := repository.NewTokenRepo(db)

	tokens := token.New(tokenRepo, cfg.JWTAccessSecret, cfg.JWTRefreshSecret,
		cfg.AccessTTLMin, cfg.RefreshTTLDays)

	uploader, err := storage.New(context.Background(), storage.Config{
		Bucket:    cfg.AvatarBucket,
		Region:    cfg.AWSRegion,
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	publisher := queue.NewPublisher()
	accounts := service.NewAccountService(userRepo, h, tokens, publisher, uploader, cfg.AvatarPublicURL)
	ledger := service.NewRatingLedger(voteRepo)

	// The mail worker runs in-process. Broker or SES trouble never blocks
	// request handling; the consumer reconnects on its own.
	go func() {
		m, err := mailer.New(context.Background(), cfg.AWSRegion)
		if err != nil {
			log.Printf("mailer: disabled, could not build SES client: %v", err)
			return
		}
		if err := queue.StartVerifyEmailConsumer(m, cfg.EmailSender, cfg.BaseURL); err != nil {
			log.Printf("mailer: consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	router.RegisterAuth(e, handler.NewAuthHandler(accounts), tokens, config.LoadRateLimitConfig(), rdb)
	router.RegisterUsers(e, handler.NewUserHandler(accounts, ledger, userRepo), tokens)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
