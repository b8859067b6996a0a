package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API    APIConfig
	Socket SocketConfig
	Store  StoreConfig
	Chat   ChatConfig
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// Paths that never get an Authorization header.
	PublicPaths []string
}

type SocketConfig struct {
	URL               string
	HeartbeatInterval time.Duration
	WriteWait         time.Duration
	PongWait          time.Duration
	// Reconnect backoff: first delay, cap, and how many unclean closes to
	// retry before giving up and reporting Disconnected.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	MaxReconnects int
}

type StoreConfig struct {
	// Path to the sqlite file backing the client-side store.
	Path string
}

type ChatConfig struct {
	// Greeting persisted as the first message of an empty conversation,
	// keyed by language.
	Greetings map[string]string
}

func Load() *Config {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:        "http://192.168.9.195:1010/api",
			RequestTimeout: 30 * time.Second,
			PublicPaths: []string{
				"/v1/auth/authenticate",
				"/cate/list-category/",
			},
		},
		Socket: SocketConfig{
			URL:               "ws://192.168.9.195:1010/ws-raw",
			HeartbeatInterval: 10 * time.Second,
			WriteWait:         10 * time.Second,
			PongWait:          60 * time.Second,
			ReconnectBase:     time.Second,
			ReconnectMax:      30 * time.Second,
			MaxReconnects:     8,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Chat: ChatConfig{
			Greetings: map[string]string{
				"VN": "Đơn hàng của bạn đã được tiếp nhận, chúng tôi sẽ giao đơn cho bạn sớm nhất có thể!",
				"EN": "Your order has been received, we will deliver it to you as soon as possible!",
			},
		},
	}

	if v := os.Getenv("SHIPLINE_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SHIPLINE_WS_URL"); v != "" {
		cfg.Socket.URL = v
	}
	if v := os.Getenv("SHIPLINE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SHIPLINE_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.API.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shipline.db"
	}
	return filepath.Join(dir, "shipline", "store.db")
}
