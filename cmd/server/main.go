package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avalora/visuals-api/internal/config"
	"github.com/avalora/visuals-api/internal/database"
	"github.com/avalora/visuals-api/internal/handler"
	"github.com/avalora/visuals-api/internal/mailer"
	"github.com/avalora/visuals-api/internal/queue"
	"github.com/avalora/visuals-api/internal/repository"
	"github.com/avalora/visuals-api/internal/router"
	"github.com/avalora/visuals-api/internal/service"
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

	// Redis backs the auth rate limiter and the catalog response cache.
	// nil degrades both to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	var mail mailer.Mailer
	if cfg.MailerDriver == "smtp" {
		mail = &mailer.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Pass:     cfg.SMTPPass,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		}
	} else {
		mail = mailer.LogMailer{}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	licenses := repository.NewLicenseRepo(db)
	products := repository.NewProductRepo(db)
	purchases := repository.NewPurchaseRepo(db)

	accountSvc := service.NewAccountService(users, tokens, mail, service.AccountConfig{
		JWTSecret:      cfg.JWTSecret,
		SessionTTLDays: cfg.SessionTTLDays,
		BcryptCost:     cfg.BcryptCost,
		FrontendOrigin: cfg.FrontendOrigin,
	})
	licenseSvc := service.NewLicenseService(licenses, users, cfg.LicenseSegLen)

	h := router.Handlers{
		Auth:      handler.NewAuthHandler(accountSvc),
		Licenses:  handler.NewLicenseHandler(licenseSvc, licenses),
		Products:  handler.NewProductHandler(products),
		Purchases: handler.NewPurchaseHandler(purchases, products),
		Admin:     handler.NewAdminHandler(licenseSvc, licenses, users, products, purchases),
	}

	// Audit trail consumer; keeps reconnecting on its own.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, h, users, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
