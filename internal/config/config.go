package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Mode             string // rendezvous, host, student or local
	Port             string
	DatabaseURL      string
	RendezvousURL    string
	AdvertiseURL     string
	RoomCode         string
	PlayerName       string
	TeamID           string
	Role             string
	ClassType        string
	HeartbeatSeconds int
	LogLevel         string
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func Default() *Config {
	return &Config{
		Mode:             "local",
		Port:             "8080",
		RendezvousURL:    "http://localhost:8080",
		TeamID:           "1",
		Role:             "COMBAT",
		ClassType:        "WARRIOR",
		HeartbeatSeconds: 15,
		LogLevel:         "info",
	}
}

func Load() *Config {
	def := Default()
	return &Config{
		Mode:             strings.ToLower(getEnv("ARENA_MODE", def.Mode)),
		Port:             getEnv("PORT", def.Port),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RendezvousURL:    getEnv("RENDEZVOUS_URL", def.RendezvousURL),
		AdvertiseURL:     getEnv("ADVERTISE_URL", ""),
		RoomCode:         strings.ToUpper(getEnv("ROOM_CODE", "")),
		PlayerName:       getEnv("PLAYER_NAME", ""),
		TeamID:           getEnv("TEAM_ID", def.TeamID),
		Role:             strings.ToUpper(getEnv("PLAYER_ROLE", def.Role)),
		ClassType:        strings.ToUpper(getEnv("PLAYER_CLASS", def.ClassType)),
		HeartbeatSeconds: getEnvAsInt("HEARTBEAT_SECONDS", def.HeartbeatSeconds),
		LogLevel:         getEnv("LOG_LEVEL", def.LogLevel),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
