// Package config loads service settings from the environment and an
// optional YAML file. Environment variables win over the file.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	Locale   string
	Timezone string
	BotURL   string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	SQLitePath  string

	MattermostURL      string
	AttendanceBotToken string
	ApprovalChannelID  string

	PoliciesFile string
}

var defaults = map[string]string{
	"port":                 "3000",
	"env":                  "development",
	"log_level":            "info",
	"locale":               "en",
	"timezone":             "Asia/Ho_Chi_Minh",
	"bot_url":              "http://bot-service:3000",
	"store_driver":         DriverMongo,
	"mongodb_uri":          "mongodb://localhost:27017",
	"mongodb_database":     "oktel",
	"sqlite_path":          "data/timekeeper.db",
	"mattermost_url":       "http://localhost:8065",
	"attendance_bot_token": "",
	"approval_channel_id":  "",
	"policies_file":        "",
}

// Load reads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return &Config{
		Port:               v.GetString("port"),
		Env:                v.GetString("env"),
		LogLevel:           strings.ToLower(v.GetString("log_level")),
		Locale:             v.GetString("locale"),
		Timezone:           v.GetString("timezone"),
		BotURL:             strings.TrimRight(v.GetString("bot_url"), "/"),
		StoreDriver:        strings.ToLower(v.GetString("store_driver")),
		MongoURI:           v.GetString("mongodb_uri"),
		MongoDB:            v.GetString("mongodb_database"),
		SQLitePath:         v.GetString("sqlite_path"),
		MattermostURL:      strings.TrimRight(v.GetString("mattermost_url"), "/"),
		AttendanceBotToken: v.GetString("attendance_bot_token"),
		ApprovalChannelID:  v.GetString("approval_channel_id"),
		PoliciesFile:       v.GetString("policies_file"),
	}, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("PORT %q is not a valid port", c.Port))
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		errs = multierror.Append(errs, fmt.Errorf("LOG_LEVEL %q must be one of debug, info, warn, error", c.LogLevel))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = multierror.Append(errs, fmt.Errorf("MONGODB_URI is required for the mongo store"))
		}
		if c.MongoDB == "" {
			errs = multierror.Append(errs, fmt.Errorf("MONGODB_DATABASE is required for the mongo store"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = multierror.Append(errs, fmt.Errorf("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("STORE_DRIVER %q must be %s or %s", c.StoreDriver, DriverMongo, DriverSQLite))
	}

	if c.AttendanceBotToken != "" {
		if c.MattermostURL == "" {
			errs = multierror.Append(errs, fmt.Errorf("MATTERMOST_URL is required when ATTENDANCE_BOT_TOKEN is set"))
		}
		if c.ApprovalChannelID == "" {
			errs = multierror.Append(errs, fmt.Errorf("APPROVAL_CHANNEL_ID is required when ATTENDANCE_BOT_TOKEN is set"))
		}
	}
	return errs.ErrorOrNil()
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (c *Config) SlogLevel() slog.Level {
	return logLevels[c.LogLevel]
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

// Location resolves Timezone; shift times are wall-clock times in it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// MattermostEnabled reports whether approval posts and chat commands are on.
func (c *Config) MattermostEnabled() bool {
	return c.AttendanceBotToken != "" && c.ApprovalChannelID != ""
}
