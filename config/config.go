package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bellapacxx/live-bingo/utils/logger"

	"github.com/joho/godotenv"
)

// Config holds process settings read from the environment.
type Config struct {
	Port            string
	DatabaseURL     string // empty means rooms live in memory
	AllowedOrigins  []string
	LogLevel        string
	GracePeriod     time.Duration
	RoomTTL         time.Duration
	DrawRevealDelay time.Duration
	JanitorInterval time.Duration
	EndOnFirstWin   bool
	MessageRate     float64
	MessageBurst    int
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Infof("[Config] No .env file found, reading environment variables")
	}

	return Config{
		Port:            envString("PORT", "4000"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AllowedOrigins:  envList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:        envString("LOG_LEVEL", "info"),
		GracePeriod:     envDuration("GRACE_PERIOD", 3*time.Second),
		RoomTTL:         envDuration("ROOM_TTL", 24*time.Hour),
		DrawRevealDelay: envDuration("DRAW_REVEAL_DELAY", 0),
		JanitorInterval: envDuration("JANITOR_INTERVAL", 10*time.Minute),
		EndOnFirstWin:   envBool("END_ON_FIRST_WIN", false),
		MessageRate:     envFloat("MESSAGE_RATE", 10),
		MessageBurst:    envInt("MESSAGE_BURST", 20),
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		logger.Warnf("[Config] Invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func envBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warnf("[Config] Invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.Warnf("[Config] Invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		logger.Warnf("[Config] Invalid %s=%q, using %g", key, raw, def)
		return def
	}
	return f
}
