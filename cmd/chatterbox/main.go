package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chatterbox-im/backend/internal/auth"
	"github.com/chatterbox-im/backend/internal/chat"
	"github.com/chatterbox-im/backend/internal/config"
	"github.com/chatterbox-im/backend/internal/conversations"
	"github.com/chatterbox-im/backend/internal/httpx"
	"github.com/chatterbox-im/backend/internal/messages"
	"github.com/chatterbox-im/backend/internal/storage"
	"github.com/chatterbox-im/backend/internal/storage/postgres"
	"github.com/chatterbox-im/backend/internal/storage/sqlite"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	mintFor := flag.Int64("mint-token", 0, "print a connection token for the given user id and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "err", err)
	}
	cfg := config.MustLoad()

	var store storage.Store
	switch cfg.DBDriver {
	case "postgres":
		conn, err := postgres.New(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer conn.Db.Close()
		if *migrate {
			if err := conn.Migrate("sql/schema_postgres.sql"); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
			slog.Info("migration completed")
			return
		}
		store = conn
	default:
		conn, err := sqlite.New(cfg.SQLiteDSN)
		if err != nil {
			log.Fatalf("Error connecting to database: %v", err)
		}
		defer conn.Db.Close()
		if *migrate {
			if err := conn.Migrate("sql/schema.sql"); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
			slog.Info("migration completed")
			return
		}
		store = conn
	}

	// There is no login flow; tokens are minted out of band.
	if *mintFor > 0 {
		if _, err := store.UserByID(context.Background(), *mintFor); err != nil {
			log.Fatalf("Unknown user %d: %v", *mintFor, err)
		}
		token, err := auth.NewToken(cfg.JWTSecret, *mintFor, cfg.JWTTTLMin)
		if err != nil {
			log.Fatalf("Token mint failed: %v", err)
		}
		fmt.Println(token)
		return
	}

	hub := chat.NewHub(store, chat.Options{
		TypingTTL:       time.Duration(cfg.TypingTTLMs) * time.Millisecond,
		AwayAfter:       time.Duration(cfg.AwayAfterMin) * time.Minute,
		AttachmentHosts: cfg.AttachmentHosts,
	})
	go hub.Run()

	// Presence sweep: demote idle users to away on a fixed interval.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.PresenceSweepSec) * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if n := hub.Presence().CleanupInactiveUsers(); n > 0 {
				slog.Info("presence sweep", "demoted", n)
			}
		}
	}()

	r := gin.Default()

	chat.RegisterWS(r.Group("/"), hub, store, cfg.JWTSecret)

	api := r.Group("/api", auth.JWTMiddleware(cfg.JWTSecret))
	conversations.Register(api, store)
	messages.Register(api, store, hub)

	api.GET("/presence/online", func(c *gin.Context) {
		httpx.OK(c, gin.H{"users": hub.Presence().OnlineUsers()})
	})
	api.GET("/presence/:userId", func(c *gin.Context) {
		uid, err := strconv.ParseInt(c.Param("userId"), 10, 64)
		if err != nil {
			httpx.Err(c, http.StatusBadRequest, "invalid user id")
			return
		}
		httpx.OK(c, hub.Presence().Presence(uid))
	})

	slog.Info("listening", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
