// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the tool reads. It is built once at startup
// and passed explicitly to the components that need it.
type Config struct {
	SenderFilter  string
	SubjectPrefix string
	DriveFolderID string

	// Gmail OAuth material. TokenJSON, when set, takes precedence over the
	// token file so CI runs never touch the filesystem.
	ClientSecretFile string
	TokenFile        string
	TokenJSON        string

	// Drive service-account material. ServiceAccountJSON, when set, takes
	// precedence over the file.
	ServiceAccountFile string
	ServiceAccountJSON string

	Timezone string
	LogLevel string

	SMTP SMTP
}

// SMTP holds the settings for the batch distribution mode. They are only
// validated when that mode runs.
type SMTP struct {
	Host           string
	Port           int
	User           string
	Pass           string
	SenderName     string
	RecipientsFile string
}

// Load reads configuration from the environment, seeded from a .env file
// when one is present. Only DRIVE_FOLDER_ID is required up front.
func Load() (*Config, error) {
	_ = godotenv.Load()

	folderID := os.Getenv("DRIVE_FOLDER_ID")
	if folderID == "" {
		return nil, fmt.Errorf("DRIVE_FOLDER_ID is required")
	}

	cfg := &Config{
		SenderFilter:       getenv("SENDER_FILTER", "rassegnastampa@telpress.it"),
		SubjectPrefix:      getenv("SUBJECT_PREFIX", "Rassegna STAMPA"),
		DriveFolderID:      folderID,
		ClientSecretFile:   getenv("GOOGLE_CLIENT_SECRET_FILE", "client_secret.json"),
		TokenFile:          getenv("GOOGLE_TOKEN_FILE", "token_google.json"),
		TokenJSON:          os.Getenv("GOOGLE_TOKEN_JSON"),
		ServiceAccountFile: getenv("SERVICE_ACCOUNT_FILE", "service_account.json"),
		ServiceAccountJSON: os.Getenv("SERVICE_ACCOUNT_JSON"),
		Timezone:           getenv("TIMEZONE", "Europe/Rome"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		SMTP: SMTP{
			Host:           os.Getenv("SMTP_HOST"),
			User:           os.Getenv("SMTP_USER"),
			Pass:           os.Getenv("SMTP_PASS"),
			SenderName:     getenv("SMTP_SENDER_NAME", "ANCE Piemonte"),
			RecipientsFile: getenv("NOTIFY_BCC_FILE", "notify_bcc.txt"),
		},
	}

	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", raw, err)
		}
		cfg.SMTP.Port = port
	}

	return cfg, nil
}

// Location resolves the configured timezone, used to derive "today".
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ValidateSMTP checks that every setting the send mode needs is present.
func (c *Config) ValidateSMTP() error {
	switch {
	case c.SMTP.Host == "":
		return fmt.Errorf("SMTP_HOST is required for the send mode")
	case c.SMTP.Port == 0:
		return fmt.Errorf("SMTP_PORT is required for the send mode")
	case c.SMTP.User == "":
		return fmt.Errorf("SMTP_USER is required for the send mode")
	case c.SMTP.Pass == "":
		return fmt.Errorf("SMTP_PASS is required for the send mode")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
