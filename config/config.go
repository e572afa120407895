package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	OAuth      OAuthConfig
	Cloudinary CloudinaryConfig
	Location   LocationConfig
	Khalti     KhaltiConfig
	Stripe     StripeConfig
	Firebase   FirebaseConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	RateLimit  RateLimitConfig
	Admin      AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type LocationConfig struct {
	DefaultRadiusKm    float64
	DispatchBoxDegrees float64 // half-width of the emergency dispatch box
}

type KhaltiConfig struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	WebsiteURL string
}

type StripeConfig struct {
	BaseURL   string
	SecretKey string
	Currency  string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

// RedisConfig enables cross-instance relay fan-out when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RabbitMQConfig enables emergency lifecycle events when URL is set.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type AdminConfig struct {
	Email    string
	Password string
	Phone    string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getenv("PORT", "8099"),
			Env:          getenv("APP_ENV", "development"),
			ReadTimeout:  getenvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getenvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getenv("DATABASE_DSN", "roadassist:roadassist@tcp(localhost:3306)/roadassist?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret:  getenv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getenv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  getenvDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
			RefreshExpiry: getenvDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),
			Issuer:        getenv("JWT_ISSUER", "roadassist"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getenv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getenv("GOOGLE_REDIRECT_URL", "http://localhost:8099/api/auth/google/callback"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getenv("CLOUDINARY_API_KEY", ""),
			APISecret: getenv("CLOUDINARY_API_SECRET", ""),
			Folder:    getenv("CLOUDINARY_FOLDER", "roadassist"),
		},
		Location: LocationConfig{
			DefaultRadiusKm:    getenvFloat("DEFAULT_RADIUS_KM", 10),
			DispatchBoxDegrees: getenvFloat("DISPATCH_BOX_DEGREES", 0.1),
		},
		Khalti: KhaltiConfig{
			BaseURL:    getenv("KHALTI_BASE_URL", "https://dev.khalti.com/api/v2"),
			SecretKey:  getenv("KHALTI_SECRET_KEY", ""),
			ReturnURL:  getenv("KHALTI_RETURN_URL", "http://localhost:3000/payment/success"),
			WebsiteURL: getenv("KHALTI_WEBSITE_URL", "http://localhost:3000"),
		},
		Stripe: StripeConfig{
			BaseURL:   getenv("STRIPE_BASE_URL", "https://api.stripe.com"),
			SecretKey: getenv("STRIPE_SECRET_KEY", ""),
			Currency:  getenv("STRIPE_CURRENCY", "usd"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: getenv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			Channel:  getenv("REDIS_RELAY_CHANNEL", "roadassist:relay"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getenv("RABBITMQ_URL", ""),
			Exchange: getenv("RABBITMQ_EXCHANGE", "emergency_topic"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getenvFloat("RATE_LIMIT_RPS", 5),
			Burst:             getenvInt("RATE_LIMIT_BURST", 20),
		},
		Admin: AdminConfig{
			Email:    getenv("ADMIN_EMAIL", ""),
			Password: getenv("ADMIN_PASSWORD", ""),
			Phone:    getenv("ADMIN_PHONE", "0000000000"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
