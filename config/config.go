package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"agones-battleground/battleground"

	"github.com/rs/zerolog/log"
)

type Config struct {
	TicketSubscription string
	ResultTopic        string
	OutcomeTopic       string
	GoogleProjectID    string
	CredentialsFile    string
	TargetNamespace    string
	OverflowFleet      string
	HTTPPort           int
	LogLevel           string

	TickInterval      time.Duration
	MaxInstances      int
	PrematureFinishMs int64
	TestingMode       bool
	LogMatches        bool
	MatchLogPath      string
	TemplatesFile     string
	LocaleDir         string
	AgonesSDK         bool
	HealthInterval    time.Duration
}

func Load() *Config {
	cfg := &Config{
		TicketSubscription: strings.TrimSpace(getEnv("TICKET_SUBSCRIPTION", os.Getenv("BATTLEGROUND_PUBSUB_SUBSCRIPTION"))),
		ResultTopic:        strings.TrimSpace(getEnv("TICKET_RESULT_TOPIC", os.Getenv("BATTLEGROUND_PUBSUB_TOPIC"))),
		OutcomeTopic:       strings.TrimSpace(getEnv("MATCH_OUTCOME_TOPIC", "")),
		TargetNamespace:    strings.TrimSpace(getEnv("TARGET_NAMESPACE", "default")),
		OverflowFleet:      strings.TrimSpace(getEnv("OVERFLOW_FLEET", "")),
		HTTPPort:           getEnvInt("BATTLEGROUND_HTTP_PORT", 8080),
		LogLevel:           strings.TrimSpace(getEnv("BATTLEGROUND_LOG_LEVEL", "info")),
		CredentialsFile:    strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), os.Getenv("BATTLEGROUND_GSA_CREDENTIALS"))),

		TickInterval:      time.Duration(getEnvInt("TICK_INTERVAL_MS", 100)) * time.Millisecond,
		MaxInstances:      getEnvInt("MAX_INSTANCES", 20),
		PrematureFinishMs: int64(getEnvInt("PREMATURE_FINISH_MS", 300000)),
		TestingMode:       getEnvBool("BATTLEGROUND_TESTING", false),
		LogMatches:        getEnvBool("LOG_MATCHES", true),
		MatchLogPath:      strings.TrimSpace(getEnv("MATCH_LOG_PATH", "battleground.db")),
		TemplatesFile:     strings.TrimSpace(getEnv("TEMPLATES_FILE", "")),
		LocaleDir:         strings.TrimSpace(getEnv("LOCALE_DIR", "")),
		AgonesSDK:         getEnvBool("AGONES_SDK", true),
		HealthInterval:    time.Duration(getEnvInt("HEALTH_INTERVAL_MS", 2000)) * time.Millisecond,
	}

	cfg.GoogleProjectID = getGoogleProjectID(cfg.CredentialsFile, strings.TrimSpace(getEnv("BATTLEGROUND_PUBSUB_PROJECT_ID", "")))
	if cfg.GoogleProjectID == "" {
		log.Warn().Msg("config: Google project ID not resolved; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or BATTLEGROUND_PUBSUB_PROJECT_ID")
	}
	if cfg.TicketSubscription == "" {
		log.Warn().Msg("config: Pub/Sub subscription not set; set TICKET_SUBSCRIPTION or BATTLEGROUND_PUBSUB_SUBSCRIPTION")
	}
	if cfg.ResultTopic == "" {
		log.Warn().Msg("config: Pub/Sub topic not set; set TICKET_RESULT_TOPIC or BATTLEGROUND_PUBSUB_TOPIC")
	}
	if cfg.TickInterval <= 0 {
		log.Warn().Dur("interval", cfg.TickInterval).Msg("config: invalid tick interval; using 100ms")
		cfg.TickInterval = 100 * time.Millisecond
	}
	if cfg.HealthInterval <= 0 {
		log.Warn().Dur("interval", cfg.HealthInterval).Msg("config: invalid health interval; using 2s")
		cfg.HealthInterval = 2 * time.Second
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.HTTPPort))
}

// Settings returns the match settings with the configured overrides.
func (c *Config) Settings() battleground.Settings {
	s := battleground.DefaultSettings()
	s.PrematureFinishTime = c.PrematureFinishMs
	s.Testing = c.TestingMode
	s.LogMatches = c.LogMatches
	return s
}

// PubSubEnabled reports whether tickets are read from Pub/Sub.
func (c *Config) PubSubEnabled() bool {
	return c.GoogleProjectID != "" && c.TicketSubscription != "" && c.ResultTopic != ""
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"projectID":           c.GoogleProjectID,
		"ticketSubscription":  c.TicketSubscription,
		"resultTopic":         c.ResultTopic,
		"outcomeTopic":        c.OutcomeTopic,
		"targetNamespace":     c.TargetNamespace,
		"overflowFleet":       c.OverflowFleet,
		"httpPort":            c.HTTPPort,
		"logLevel":            c.LogLevel,
		"credentialsProvided": c.CredentialsFile != "",
		"tickInterval":        c.TickInterval.String(),
		"maxInstances":        c.MaxInstances,
		"prematureFinishMs":   c.PrematureFinishMs,
		"testing":             c.TestingMode,
		"logMatches":          c.LogMatches,
		"matchLogPath":        c.MatchLogPath,
		"templatesFile":       c.TemplatesFile,
		"localeDir":           c.LocaleDir,
		"agonesSDK":           c.AgonesSDK,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("config: invalid int")
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		bv, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return bv
		}
		log.Warn().Str("key", key).Str("value", v).Msg("config: invalid bool")
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func projectIDFromCredentials(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return x.ProjectID, nil
}

func getGoogleProjectID(credsFile string, explicit string) string {
	// 1) Prefer GOOGLE_APPLICATION_CREDENTIALS if set
	if p := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("config: using project_id from GOOGLE_APPLICATION_CREDENTIALS")
			return strings.TrimSpace(pid)
		}
		log.Warn().Str("credsFile", p).Msg("config: project_id not found in credentials file or unreadable")
	}

	// 2) Explicit override
	if explicit := strings.TrimSpace(explicit); explicit != "" {
		log.Info().Str("projectID", explicit).Msg("config: using BATTLEGROUND_PUBSUB_PROJECT_ID for Google project")
		return explicit
	}

	// 3) Project env set by the deployment or the Google runtime
	if v := strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT"))); v != "" {
		log.Info().Str("projectID", v).Msg("config: using Google project from environment")
		return v
	}

	// 4) Fallback to the provided credentials file (BATTLEGROUND_GSA_CREDENTIALS)
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("config: using project_id from provided credentials file")
			return strings.TrimSpace(pid)
		}
	}
	return ""
}
