package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Addr        string
	JWTSecret   string
	JWTTTLMin   int
	DBDriver    string
	SQLiteDSN   string
	PostgresDSN string

	TypingTTLMs      int
	AwayAfterMin     int
	PresenceSweepSec int
	AttachmentHosts  []string
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func MustLoad() Config {
	cfg := Config{
		Addr:        getenv("HTTP_ADDR", ":8080"),
		JWTSecret:   getenv("JWT_SECRET", ""),
		JWTTTLMin:   getenvInt("JWT_TTL_MIN", 1440),
		DBDriver:    getenv("DB_DRIVER", "sqlite"),
		SQLiteDSN:   getenv("SQLITE_DSN", "file:chat.db?_pragma=foreign_keys(ON)"),
		PostgresDSN: getenv("POSTGRES_DSN", ""),

		TypingTTLMs:      getenvInt("TYPING_TTL_MS", 3000),
		AwayAfterMin:     getenvInt("AWAY_AFTER_MIN", 5),
		PresenceSweepSec: getenvInt("PRESENCE_SWEEP_SEC", 60),
	}
	for _, h := range strings.Split(getenv("ATTACHMENT_HOSTS", "storage.chatterbox.im"), ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			cfg.AttachmentHosts = append(cfg.AttachmentHosts, h)
		}
	}
	return cfg
}
