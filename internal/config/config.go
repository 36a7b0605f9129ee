package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// chat context
	ChatContextWindowSize int
	ChatCompactThreshold  int
	ChatCompactKeep       int
	ChatMaxTokens         int
	ChatTemperature       float64

	NutritionMaxTokens   int
	NutritionTemperature float64
	NutritionCacheTTL    time.Duration

	// AI provider
	AIProvider        string
	AITimeout         time.Duration
	AzureEndpoint     string
	AzureAPIKey       string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// uploads
	UploadDir      string
	UploadMaxBytes int64
	S3Bucket       string
	S3Region       string
	S3PublicURL    string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

func Load() Config {
	// .env is optional; real environment wins
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded err=%v", err)
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = "sqlite"
	}

	// DSN demo:
	// sqlite:   macrolog.sqlite
	// postgres: host=127.0.0.1 user=app password=apppass dbname=macrolog port=5432 sslmode=disable
	// mysql:    app:apppass@tcp(127.0.0.1:3306)/macrolog?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" && driver == "sqlite" {
		dsn = "macrolog.sqlite"
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	aiProvider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if aiProvider == "" {
		aiProvider = "azure"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	openRouterBaseURL := os.Getenv("OPENROUTER_BASE_URL")
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	openRouterModel := os.Getenv("OPENROUTER_MODEL")
	if openRouterModel == "" {
		openRouterModel = "openrouter/auto"
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}

	s3Region := os.Getenv("S3_REGION")
	if s3Region == "" {
		s3Region = os.Getenv("AWS_REGION")
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "chat_turns"
	}

	return Config{
		HTTPAddr: httpAddr,

		DBDriver: driver,
		DBDSN:    dsn,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		ChatContextWindowSize: envInt("CHAT_CONTEXT_WINDOW_SIZE", 20),
		ChatCompactThreshold:  envInt("CHAT_COMPACT_THRESHOLD", 15),
		ChatCompactKeep:       envInt("CHAT_COMPACT_KEEP", 5),
		ChatMaxTokens:         envInt("CHAT_MAX_TOKENS", 300),
		ChatTemperature:       envFloat("CHAT_TEMPERATURE", 0.7),

		NutritionMaxTokens:   envInt("NUTRITION_MAX_TOKENS", 300),
		NutritionTemperature: envFloat("NUTRITION_TEMPERATURE", 0.2),
		NutritionCacheTTL:    time.Duration(envInt("NUTRITION_CACHE_TTL_MINUTES", 24*60)) * time.Minute,

		AIProvider:        aiProvider,
		AITimeout:         time.Duration(envInt("AI_TIMEOUT_SECONDS", 30)) * time.Second,
		AzureEndpoint:     os.Getenv("AZURE_ENDPOINT"),
		AzureAPIKey:       os.Getenv("AZURE_API_KEY"),
		OllamaBaseURL:     ollamaBaseURL,
		OllamaModel:       ollamaModel,
		OpenRouterBaseURL: openRouterBaseURL,
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   openRouterModel,
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		UploadDir:      uploadDir,
		UploadMaxBytes: int64(envInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       s3Region,
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       rabbitQueue,
		WorkerConcurrency: workerConcurrency(),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func workerConcurrency() int {
	n := envInt("WORKER_CONCURRENCY", 2)
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}
