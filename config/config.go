package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	Env          string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	RedisURL     string
	KafkaBrokers string
	OrderTopic   string
	StripeSecretKey string
	SNSTopicARN     string
	EthRPCURL       string
	EthChainName    string
	RateSourceURL   string
	WalletPrivateKey string
	MerchantAddress  string

	// Pricing
	TaxRate               float64
	FreeShippingThreshold int64 // cents
	StandardFee           int64
	ExpressFee            int64
	OvernightFee          int64
	FeeMultiplier         float64
	RateMaxAge            time.Duration

	// Timeouts
	ConnectTimeout  time.Duration
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	SubmitTimeout   time.Duration
}

func LoadConfig() (*Config, error) {
	// .env is optional; real env always wins
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8089"),
		Env:              getEnv("APP_ENV", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", "localhost:9092"),
		OrderTopic:       getEnv("ORDER_TOPIC", "order.placed"),
		StripeSecretKey:  os.Getenv("STRIPE_API_KEY"),
		SNSTopicARN:      os.Getenv("ORDER_SNS_TOPIC_ARN"),
		EthRPCURL:        getEnv("ETH_RPC_URL", "http://localhost:8545"),
		EthChainName:     getEnv("ETH_CHAIN_NAME", "sepolia"),
		RateSourceURL:    getEnv("RATE_SOURCE_URL", "http://localhost:8090/rates"),
		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
		MerchantAddress:  os.Getenv("MERCHANT_WALLET_ADDRESS"),

		TaxRate:               getEnvFloat("TAX_RATE", 0.08),
		FreeShippingThreshold: getEnvInt64("FREE_SHIPPING_THRESHOLD", 10000),
		StandardFee:           getEnvInt64("STANDARD_SHIPPING_FEE", 999),
		ExpressFee:            getEnvInt64("EXPRESS_SHIPPING_FEE", 2500),
		OvernightFee:          getEnvInt64("OVERNIGHT_SHIPPING_FEE", 4500),
		FeeMultiplier:         getEnvFloat("FEE_MULTIPLIER", 1.0),
		RateMaxAge:            getEnvDuration("RATE_MAX_AGE", 5*time.Minute),

		ConnectTimeout:  getEnvDuration("WALLET_CONNECT_TIMEOUT", 30*time.Second),
		ConfirmTimeout:  getEnvDuration("CONFIRM_TIMEOUT", 2*time.Minute),
		PollInterval:    getEnvDuration("CONFIRM_POLL_INTERVAL", 2*time.Second),
		PollMaxInterval: getEnvDuration("CONFIRM_POLL_MAX_INTERVAL", 15*time.Second),
		SubmitTimeout:   getEnvDuration("ORDER_SUBMIT_TIMEOUT", 10*time.Second),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
