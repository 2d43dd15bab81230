package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/campus-attendance/backend/internal/calendar"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	AWS        AWSConfig
	Email      EmailConfig
	Attendance AttendanceConfig
	Report     ReportConfig
	Admin      AdminConfig
}

// EmailConfig holds SMTP settings and the report recipients.
type EmailConfig struct {
	FromAddress string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	Recipients  []string // ADMIN_EMAILS, comma-separated
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
	WorkerMetricsPort  string // worker process /metrics listener; empty disables it
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/attendance?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns           int
	MinConns           int
	MaxConnLifetimeMin int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the report archive bucket.
// Archiving is disabled when ReportsBucket is empty.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Endpoint             string
	ReportsBucket        string
	PresignExpireMinutes int
}

// AttendanceConfig holds the reference zone and the daily admission window.
type AttendanceConfig struct {
	Timezone    string
	WindowStart string
	WindowEnd   string
}

// ReportConfig holds the daily report schedule.
type ReportConfig struct {
	Cron           string
	TimeoutMinutes int
}

// AdminConfig holds the credentials of the seeded administrator.
type AdminConfig struct {
	Username string
	Password string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Location loads the reference time zone.
func (c AttendanceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Window builds the admission window in the reference zone.
func (c AttendanceConfig) Window() (calendar.Window, error) {
	loc, err := c.Location()
	if err != nil {
		return calendar.Window{}, err
	}
	return calendar.NewWindow(loc, c.WindowStart, c.WindowEnd)
}

// ArchiveEnabled reports whether report archives are uploaded to S3.
func (c AWSConfig) ArchiveEnabled() bool {
	return c.ReportsBucket != ""
}

// MaxConnLifetime returns the pool connection lifetime.
func (c DatabaseConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMin) * time.Minute
}

// Timeout returns the per-run report deadline.
func (c ReportConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			WorkerMetricsPort:  getEnv("WORKER_METRICS_PORT", "9091"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "attendance"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:           getEnvInt("DB_MAX_CONNS", 10),
			MinConns:           getEnvInt("DB_MIN_CONNS", 2),
			MaxConnLifetimeMin: getEnvInt("DB_MAX_CONN_LIFETIME_MIN", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:             getEnv("AWS_S3_ENDPOINT", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "attendance@example.com"),
			SMTPHost:    getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			Recipients:  splitTrim(getEnv("ADMIN_EMAILS", ""), ","),
		},
		Attendance: AttendanceConfig{
			Timezone:    getEnv("ATTENDANCE_TIMEZONE", "Asia/Kolkata"),
			WindowStart: getEnv("ATTENDANCE_WINDOW_START", "09:30"),
			WindowEnd:   getEnv("ATTENDANCE_WINDOW_END", "09:45"),
		},
		Report: ReportConfig{
			Cron:           getEnv("REPORT_CRON", "45 9 * * *"),
			TimeoutMinutes: getEnvInt("REPORT_TIMEOUT_MINUTES", 5),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if _, err := c.Attendance.Window(); err != nil {
		return fmt.Errorf("attendance window: %w", err)
	}
	if c.JWT.ExpireHours <= 0 {
		return fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
	}
	if c.Report.TimeoutMinutes <= 0 {
		return fmt.Errorf("REPORT_TIMEOUT_MINUTES must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
