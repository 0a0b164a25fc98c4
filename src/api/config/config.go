package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	MySQLDSN      string
	RedisURL      string
	JWTSecret     string
	Port          string
	SweepInterval int // seconds between expiry sweeps
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		if def == "" {
			log.Fatalf("missing env %s", key)
		}
		return def
	}
	return v
}

func Load() Config {
	si, _ := strconv.Atoi(getenv("SWEEP_INTERVAL", "60"))
	return Config{
		MySQLDSN:      getenv("MYSQL_DSN", "concord:concord@tcp(localhost:3306)/concord"),
		RedisURL:      getenv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:     getenv("JWT_SECRET", ""),
		Port:          getenv("PORT", "8080"),
		SweepInterval: si,
	}
}
