package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
	Shortener  `yaml:"shortener"`
	Auth       `yaml:"auth"`
	Sweep      `yaml:"sweep"`
}

// HTTPServer holds HTTP server specific configuration.
type HTTPServer struct {
	Address      string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  string `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout string `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout  string `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"encurtador"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// Shortener holds service-specific configuration.
type Shortener struct {
	BaseURL             string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	CodeLength          int    `yaml:"code_length" env:"CODE_LENGTH" env-default:"7"`
	MaxGenerateAttempts int    `yaml:"max_generate_attempts" env:"MAX_GENERATE_ATTEMPTS" env-default:"5"`
	GuestExpirationDays int    `yaml:"guest_expiration_days" env:"GUEST_EXPIRATION_DAYS" env-default:"7"`
}

// Auth holds Google OAuth and session token settings.
type Auth struct {
	GoogleClientID     string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `yaml:"google_callback_url" env:"GOOGLE_CALLBACK_URL" env-default:"http://localhost:8080/auth/google/callback"`
	JWTSecret          string `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL           string `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	AdminEmails        string `yaml:"admin_emails" env:"ADMIN_EMAILS"` // comma-separated allowlist
}

// Sweep holds the expired-link cleanup job settings.
type Sweep struct {
	Enabled  bool   `yaml:"enabled" env:"SWEEP_ENABLED" env-default:"true"`
	Schedule string `yaml:"schedule" env:"SWEEP_SCHEDULE" env-default:"0 * * * *"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	// Check if config file path is specified
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	// Try to load config file
	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		// If config file doesn't exist, use environment variables only
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	return &cfg
}
