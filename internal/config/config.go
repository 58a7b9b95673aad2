package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort   string
	IdleTimeout  time.Duration
	SweepSpec    string // cron expression driving the idle sweep
	JudgeURL     string // empty means the built-in stand-in judge
	JudgeRetries int
	JudgeBackoff time.Duration
	ChatLogCap   int
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		IdleTimeout:  getDuration("BATTLE_IDLE_TIMEOUT", 30*time.Minute),
		SweepSpec:    getEnv("BATTLE_SWEEP_SPEC", "@every 1m"),
		JudgeURL:     getEnv("JUDGE_URL", ""),
		JudgeRetries: getInt("JUDGE_RETRIES", 3),
		JudgeBackoff: getDuration("JUDGE_BACKOFF", 2*time.Second),
		ChatLogCap:   getInt("CHAT_LOG_CAP", 200),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
