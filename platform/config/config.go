// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection and pool settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int32
	GetDatabaseMinConns() int32
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
}

// TablesConfig provides the path to the versioned keyword/FX/partner tables.
type TablesConfig interface {
	GetTablesPath() string
}

// PhoneConfig provides the default region for parsing national numbers.
type PhoneConfig interface {
	GetDefaultPhoneRegion() string
}

// SMSConfig provides settings for the primary SMS provider.
type SMSConfig interface {
	GetSMSAccountSID() string
	GetSMSAuthToken() string
	GetSMSFromNumber() string
	GetSMSAPIBaseURL() string
	IsSMSEnabled() bool
}

// WebhookConfig provides settings for inbound webhook validation.
type WebhookConfig interface {
	GetWebhookSigningSecret() string
	GetWebhookPublicURL() string
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// VoiceConfig provides settings for the text-to-speech voice provider.
type VoiceConfig interface {
	GetVoiceAPIBaseURL() string
	GetVoiceAPIKey() string
	GetVoiceFromNumber() string
	IsVoiceEnabled() bool
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetEmailEnabled() bool
}

// PartnerAPIConfig provides settings for the partner lead-ingestion API.
type PartnerAPIConfig interface {
	GetPartnerRSAPrivateKeyPEM() string
}

// ClassifierConfig provides settings for the external classification service.
type ClassifierConfig interface {
	GetClassifierURL() string
	GetClassifierAPIKey() string
	GetClassifierTimeout() time.Duration
}

// RateLimitConfig provides rate limiter settings.
type RateLimitConfig interface {
	GetRateLimitPerMinute() int
	GetRateLimitBurst() int
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DeliveryConfig provides settings for the outbound delivery chain.
type DeliveryConfig interface {
	GetDeliveryStepTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	DatabaseMaxConns     int32
	DatabaseMinConns     int32
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	TablesPath           string
	DefaultRegion        string
	SMSAccountSID        string
	SMSAuthToken         string
	SMSFromNumber        string
	SMSAPIBaseURL        string
	WebhookSigningSecret string
	WebhookPublicURL     string
	WhatsAppURL          string
	WhatsAppKey          string
	WhatsAppDeviceID     string
	VoiceAPIBaseURL      string
	VoiceAPIKey          string
	VoiceFromNumber      string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	EmailEnabled         bool
	PartnerRSAKeyPEM     string
	ClassifierURL        string
	ClassifierAPIKey     string
	ClassifierTimeout    time.Duration
	RateLimitPerMinute   int
	RateLimitBurst       int
	DeliveryStepTimeout  time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32 { return c.DatabaseMaxConns }
func (c *Config) GetDatabaseMinConns() int32 { return c.DatabaseMinConns }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

// TablesConfig implementation
func (c *Config) GetTablesPath() string { return c.TablesPath }

// PhoneConfig implementation
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultRegion }

// SMSConfig implementation
func (c *Config) GetSMSAccountSID() string { return c.SMSAccountSID }
func (c *Config) GetSMSAuthToken() string  { return c.SMSAuthToken }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }
func (c *Config) GetSMSAPIBaseURL() string { return c.SMSAPIBaseURL }
func (c *Config) IsSMSEnabled() bool       { return c.SMSAccountSID != "" && c.SMSAuthToken != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookSigningSecret() string { return c.WebhookSigningSecret }
func (c *Config) GetWebhookPublicURL() string     { return c.WebhookPublicURL }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIBaseURL() string { return c.VoiceAPIBaseURL }
func (c *Config) GetVoiceAPIKey() string     { return c.VoiceAPIKey }
func (c *Config) GetVoiceFromNumber() string { return c.VoiceFromNumber }
func (c *Config) IsVoiceEnabled() bool       { return c.VoiceAPIBaseURL != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }

// PartnerAPIConfig implementation
func (c *Config) GetPartnerRSAPrivateKeyPEM() string { return c.PartnerRSAKeyPEM }

// ClassifierConfig implementation
func (c *Config) GetClassifierURL() string            { return c.ClassifierURL }
func (c *Config) GetClassifierAPIKey() string         { return c.ClassifierAPIKey }
func (c *Config) GetClassifierTimeout() time.Duration { return c.ClassifierTimeout }

// RateLimitConfig implementation
func (c *Config) GetRateLimitPerMinute() int { return c.RateLimitPerMinute }
func (c *Config) GetRateLimitBurst() int     { return c.RateLimitBurst }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// DeliveryConfig implementation
func (c *Config) GetDeliveryStepTimeout() time.Duration { return c.DeliveryStepTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true") && smtpHost != ""

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:     int32(mustInt(getEnv("DB_MAX_CONNS", "25"))),
		DatabaseMinConns:     int32(mustInt(getEnv("DB_MIN_CONNS", "5"))),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		TablesPath:           getEnv("TABLES_PATH", "config/tables.yaml"),
		DefaultRegion:        getEnv("DEFAULT_PHONE_REGION", "NG"),
		SMSAccountSID:        getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:         getEnv("SMS_AUTH_TOKEN", ""),
		SMSFromNumber:        getEnv("SMS_FROM_NUMBER", ""),
		SMSAPIBaseURL:        getEnv("SMS_API_BASE_URL", "https://api.twilio.com"),
		WebhookSigningSecret: getEnv("WEBHOOK_SIGNING_SECRET", ""),
		WebhookPublicURL:     getEnv("WEBHOOK_PUBLIC_URL", ""),
		WhatsAppURL:          getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:          getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:     getEnv("WHATSAPP_DEVICE_ID", ""),
		VoiceAPIBaseURL:      getEnv("VOICE_API_BASE_URL", ""),
		VoiceAPIKey:          getEnv("VOICE_API_KEY", ""),
		VoiceFromNumber:      getEnv("VOICE_FROM_NUMBER", ""),
		SMTPHost:             smtpHost,
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Leadline"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailEnabled:         emailEnabled,
		PartnerRSAKeyPEM:     getEnv("PARTNER_RSA_PRIVATE_KEY", ""),
		ClassifierURL:        getEnv("CLASSIFIER_URL", ""),
		ClassifierAPIKey:     getEnv("CLASSIFIER_API_KEY", ""),
		ClassifierTimeout:    mustDuration(getEnv("CLASSIFIER_TIMEOUT", "10s")),
		RateLimitPerMinute:   mustInt(getEnv("RATE_LIMIT_PER_MINUTE", "60")),
		RateLimitBurst:       mustInt(getEnv("RATE_LIMIT_BURST", "20")),
		DeliveryStepTimeout:  mustDuration(getEnv("DELIVERY_STEP_TIMEOUT", "5s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WebhookSigningSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SIGNING_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}
