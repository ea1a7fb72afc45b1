package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL       string
	WSURL            string
	UserID           string
	AppMode          string
	DeliveryMode     string
	SubscriptionMode string
	RoomPageSize     int
	MessagePageSize  int
	AutoReconnect    bool
}

// Delivery modes for outbound sends.
const (
	DeliveryPublish = "publish" // send over the websocket, settle via broadcast echo
	DeliveryHTTP    = "http"    // POST to the API, settle from the response body
)

// Subscription shapes offered by the live channel.
const (
	SubscriptionBroadcast = "broadcast" // one connection-wide stream, filtered by room
	SubscriptionPerRoom   = "per-room"  // one subscription re-created per room
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		APIBaseURL:       getEnv("API_BASE_URL", "http://localhost:8080/api"),
		WSURL:            getEnv("WS_URL", "ws://localhost:8080/ws-handler"),
		UserID:           getEnv("USER_ID", "1"),
		AppMode:          getEnv("APP_MODE", "development"),
		DeliveryMode:     getEnv("DELIVERY_MODE", DeliveryPublish),
		SubscriptionMode: getEnv("SUBSCRIPTION_MODE", SubscriptionBroadcast),
		RoomPageSize:     getEnvAsInt("ROOM_PAGE_SIZE", 20),
		MessagePageSize:  getEnvAsInt("MESSAGE_PAGE_SIZE", 50),
		AutoReconnect:    getEnvAsBool("AUTO_RECONNECT", true),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
