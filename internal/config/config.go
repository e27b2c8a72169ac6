package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds everything read from the environment at startup.
type Config struct {
	MongoURI      string
	MongoDBName   string
	Port          string
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	RateLimitRPM  int
	UploadDir     string
	CORSOrigins   []string
}

// Load reads .env (when present) and the process environment into a
// Config. Missing critical values are fatal; the rest get defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	cfg := &Config{
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDBName:   os.Getenv("MONGODB_DB_NAME"),
		Port:          os.Getenv("PORT"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		UploadDir:     os.Getenv("UPLOAD_DIR"),
	}

	if cfg.MongoURI == "" {
		log.Fatal("MONGODB_URI is not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set. This is critical for authentication.")
	}
	if cfg.AdminPassword == "" {
		log.Fatal("ADMIN_PASSWORD is not set")
	}
	if cfg.MongoDBName == "" {
		cfg.MongoDBName = "qepipeline"
	}
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.AdminUsername == "" {
		cfg.AdminUsername = "admin"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}

	cfg.RateLimitRPM = 10
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitRPM = n
		}
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}
