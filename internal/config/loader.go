package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "MENTORBOOK"

// Config captures the settings of the mentorbook service.
type Config struct {
	HTTPPort             int
	SQLiteDSN            string
	TokenSecret          string
	TokenTTL             time.Duration
	StoreTimeout         time.Duration
	MeetingLinksFile     string
	MeetingLinkFallback  string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	LogLevel             string
	LogFormat            string
	CORSAllowedOrigins   []string
	AvailabilityCacheTTL time.Duration
	CookieSecure         bool
}

// Load reads defaults, then the optional file named by MENTORBOOK_CONFIG,
// then MENTORBOOK_* environment variables, later sources winning.
//
// Missing required keys and malformed values are reported together.
func Load() (Config, error) {
	return LoadFile(os.Getenv(envPrefix + "_CONFIG"))
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config file not found: %s", path)
			}
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("sqlite_dsn", "file:mentorbook.db")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("store_timeout", "5s")
	v.SetDefault("meeting_links_file", "")
	v.SetDefault("meeting_link_fallback", "https://meet.mentorbook.example/lobby")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("cors_allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("availability_cache_ttl", "30s")
	v.SetDefault("cookie_secure", false)
}

func decode(v *viper.Viper) (Config, error) {
	var (
		missing []string
		invalid []string
	)
	key := func(name string) string { return envPrefix + "_" + strings.ToUpper(name) }

	positiveInt := func(name string, allowZero bool) int {
		raw := strings.TrimSpace(v.GetString(name))
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || (n == 0 && !allowZero) {
			invalid = append(invalid, key(name))
			return 0
		}
		return n
	}
	duration := func(name string, allowZero bool) time.Duration {
		raw := strings.TrimSpace(v.GetString(name))
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 || (d == 0 && !allowZero) {
			invalid = append(invalid, key(name))
			return 0
		}
		return d
	}

	cfg := Config{
		HTTPPort:             positiveInt("http_port", false),
		SQLiteDSN:            strings.TrimSpace(v.GetString("sqlite_dsn")),
		TokenSecret:          strings.TrimSpace(v.GetString("token_secret")),
		TokenTTL:             duration("token_ttl", false),
		StoreTimeout:         duration("store_timeout", false),
		MeetingLinksFile:     strings.TrimSpace(v.GetString("meeting_links_file")),
		MeetingLinkFallback:  strings.TrimSpace(v.GetString("meeting_link_fallback")),
		RedisAddr:            strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:        v.GetString("redis_password"),
		RedisDB:              positiveInt("redis_db", true),
		LogLevel:             strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:            strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		CORSAllowedOrigins:   splitList(v.GetStringSlice("cors_allowed_origins")),
		AvailabilityCacheTTL: duration("availability_cache_ttl", true),
		CookieSecure:         v.GetBool("cookie_secure"),
	}

	if cfg.TokenSecret == "" {
		missing = append(missing, key("token_secret"))
	}
	if cfg.SQLiteDSN == "" {
		missing = append(missing, key("sqlite_dsn"))
	}
	if cfg.HTTPPort > 65535 {
		invalid = append(invalid, key("http_port"))
	}
	if cfg.MeetingLinkFallback == "" {
		missing = append(missing, key("meeting_link_fallback"))
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		invalid = append(invalid, key("log_format"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// splitList accepts both list values from a file and comma separated env values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
