package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gigbook/pkg/logger"
)

type Config struct {
	HTTPPort       string
	Env            string
	AllowedOrigins []string
	DB             DBConfig
	Supabase       SupabaseConfig
	Mailer         MailerConfig
	Agenda         AgendaConfig
}

type DBConfig struct {
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SupabaseConfig struct {
	URL            string
	PublishableKey string
	JWTSecret      string
	AuthTimeout    time.Duration
	SkipAuth       bool
	MockViewerID   string
	MockViewerMail string
}

type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	InviteBase  string
	SES         SESConfig
}

type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

type AgendaConfig struct {
	IdentityTTL     time.Duration
	TenancyTTL      time.Duration
	SwitchDebounce  time.Duration
	UndoWindow      time.Duration
	PollSchedule    string
	DeleteChunkSize int
	ImportChunkSize int
	SelectionPath   string
	InviteExpiry    time.Duration
}

func Load(log logger.Logger) (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info("config: loaded .env")
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	return Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DB: DBConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "gigbook"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			TimeZone:        getEnv("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Supabase: SupabaseConfig{
			URL:            getEnv("SUPABASE_URL", ""),
			PublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
			JWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
			AuthTimeout:    getEnvDuration("SUPABASE_AUTH_TIMEOUT", 5*time.Second),
			SkipAuth:       getEnvBool("AUTH_SKIP", false),
			MockViewerID:   getEnv("AUTH_MOCK_VIEWER_ID", "00000000-0000-0000-0000-000000000001"),
			MockViewerMail: getEnv("AUTH_MOCK_VIEWER_EMAIL", "dev@localhost"),
		},
		Mailer: MailerConfig{
			Provider:    getEnv("MAILER_PROVIDER", "noop"),
			FromAddress: getEnv("MAILER_FROM_ADDRESS", ""),
			FromName:    getEnv("MAILER_FROM_NAME", "Gigbook"),
			InviteBase:  getEnv("MAILER_INVITE_BASE_URL", "http://localhost:5173"),
			SES: SESConfig{
				Region:             getEnv("SES_REGION", "us-east-1"),
				AccessKeyID:        getEnv("SES_ACCESS_KEY_ID", ""),
				SecretAccessKey:    getEnv("SES_SECRET_ACCESS_KEY", ""),
				InsecureSkipVerify: getEnvBool("SES_INSECURE_SKIP_VERIFY", false),
			},
		},
		Agenda: AgendaConfig{
			IdentityTTL:     getEnvDuration("IDENTITY_CACHE_TTL", 30*time.Second),
			TenancyTTL:      getEnvDuration("TENANCY_CACHE_TTL", 30*time.Second),
			SwitchDebounce:  getEnvDuration("AGENDA_SWITCH_DEBOUNCE", 50*time.Millisecond),
			UndoWindow:      getEnvDuration("AGENDA_UNDO_WINDOW", 10*time.Second),
			PollSchedule:    getEnv("AGENDA_POLL_SCHEDULE", "*/15 * * * * *"),
			DeleteChunkSize: getEnvInt("AGENDA_DELETE_CHUNK_SIZE", 25),
			ImportChunkSize: getEnvInt("IMPORT_CHUNK_SIZE", 25),
			SelectionPath:   getEnv("AGENDA_SELECTION_PATH", ""),
			InviteExpiry:    getEnvDuration("BAND_INVITE_EXPIRY", 7*24*time.Hour),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
