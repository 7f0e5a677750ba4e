package main

import (
	"flag"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/docmindlabs/docmind/internal/cache"
	"github.com/docmindlabs/docmind/internal/config"
	"github.com/docmindlabs/docmind/internal/db"
	"github.com/docmindlabs/docmind/internal/docs"
	"github.com/docmindlabs/docmind/internal/middleware"
	"github.com/docmindlabs/docmind/internal/telemetry"
	"github.com/docmindlabs/docmind/internal/ws"
)

func main() {
	doMigrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	cfg := config.Load()
	sqlxDB := db.MustConnect(cfg.DBDSN)
	rdb := cache.MustConnect(cfg.RedisAddr, cfg.RedisDB)

	tlog := telemetry.Init(telemetry.FromEnv(config.GetEnv))
	tlog.Info().Str("port", cfg.AppPort).Msg("booting docmind")

	if *doMigrate {
		db.MustMigrate(sqlxDB)
		log.Println("migrations done")
		return
	}

	app := fiber.New(fiber.Config{BodyLimit: cfg.MaxTextBytes + 64*1024})

	app.Use(middleware.RequestID())
	app.Use(middleware.Recover())
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.RequestLog())
	app.Use(middleware.SecureHeaders())
	app.Use(middleware.RateLimiter())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	dh := docs.NewHandler(cfg, sqlxDB, rdb)
	api := app.Group("/api/v1")

	api.Post("/documents", dh.CreateDocument)
	api.Get("/documents", dh.ListDocuments)
	api.Get("/documents/:id", dh.GetDocument)
	api.Get("/documents/:id/runs", dh.ListRuns)
	api.Get("/providers", dh.ListProviders)
	api.Get("/doctypes", dh.ListDocTypes)

	app.Get("/ws", middleware.WSUpgradeMiddleware(), websocket.New(ws.HandleWS))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
