// Package config handles application configuration loading from a YAML file
// with environment variable overrides.
package config

import (
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	contextutils "codebot/internal/utils"

	"gopkg.in/yaml.v3"
)

// AIModel represents a single model offered by a provider. Models are listed
// in preference order: the first entry is the primary model and the rest form
// the fallback chain tried on repeated rate limiting.
type AIModel struct {
	Name      string `json:"name" yaml:"name"`
	Code      string `json:"code" yaml:"code"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ProviderConfig defines the structure for a single AI provider
type ProviderConfig struct {
	Name   string    `json:"name" yaml:"name"`
	Code   string    `json:"code" yaml:"code"`
	URL    string    `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey string    `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Models []AIModel `json:"models" yaml:"models"`
}

// AIConfig selects the active provider and tunes request handling
type AIConfig struct {
	Provider       string        `json:"provider" yaml:"provider"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	Temperature    float64       `json:"temperature" yaml:"temperature"`
}

// TrackConfig describes a learning track and the persona that tutors it
type TrackConfig struct {
	DisplayName string `json:"display_name" yaml:"display_name"`
	Persona     string `json:"persona" yaml:"persona"`
	Language    string `json:"language" yaml:"language"`
	Description string `json:"description" yaml:"description"`
}

// AuthConfig represents authentication-related configuration
type AuthConfig struct {
	SignupsDisabled bool     `json:"signups_disabled" yaml:"signups_disabled"`
	AllowedEmails   []string `json:"allowed_emails,omitempty" yaml:"allowed_emails,omitempty"`
}

// SystemConfig represents system-wide configuration
type SystemConfig struct {
	Auth AuthConfig `json:"auth" yaml:"auth"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Protocol       string            `json:"protocol" yaml:"protocol"` // "grpc" or "http"
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"`
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            string   `json:"port" yaml:"port"`
	AdminUsername   string   `json:"admin_username" yaml:"admin_username"`
	AdminPassword   string   `json:"admin_password" yaml:"admin_password"`
	SessionSecret   string   `json:"session_secret" yaml:"session_secret"`
	Debug           bool     `json:"debug" yaml:"debug"`
	LogLevel        string   `json:"log_level" yaml:"log_level"`
	BackendBaseURL  string   `json:"backend_base_url" yaml:"backend_base_url"`
	AppBaseURL      string   `json:"app_base_url" yaml:"app_base_url"`
	MaxAIConcurrent int      `json:"max_ai_concurrent" yaml:"max_ai_concurrent"`
	MaxAIPerUser    int      `json:"max_ai_per_user" yaml:"max_ai_per_user"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins"`
	MaxHistory      int      `json:"max_history" yaml:"max_history"`
}

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`

	AI        AIConfig               `json:"ai" yaml:"ai"`
	Providers []ProviderConfig       `json:"providers" yaml:"providers"`
	Tracks    map[string]TrackConfig `json:"tracks" yaml:"tracks"`
	System    *SystemConfig          `json:"system,omitempty" yaml:"system,omitempty"`

	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// GetTracks returns a sorted slice of all configured track codes
func (c *Config) GetTracks() []string {
	if c.Tracks == nil {
		return []string{}
	}

	tracks := make([]string, 0, len(c.Tracks))
	for track := range c.Tracks {
		tracks = append(tracks, track)
	}

	sort.Strings(tracks)
	return tracks
}

// IsValidTrack reports whether the given track code is configured
func (c *Config) IsValidTrack(track string) bool {
	if c.Tracks == nil {
		return false
	}
	_, ok := c.Tracks[track]
	return ok
}

// GetTrack returns the configuration for a track code
func (c *Config) GetTrack(track string) (result0 TrackConfig, result1 bool) {
	if c.Tracks == nil {
		return TrackConfig{}, false
	}
	tc, ok := c.Tracks[track]
	return tc, ok
}

// GetProvider returns the provider config matching the given code
func (c *Config) GetProvider(code string) (result0 *ProviderConfig, result1 bool) {
	for i := range c.Providers {
		if c.Providers[i].Code == code {
			return &c.Providers[i], true
		}
	}
	return nil, false
}

// ActiveProvider returns the provider selected by the ai.provider setting
func (c *Config) ActiveProvider() (result0 *ProviderConfig, result1 bool) {
	return c.GetProvider(c.AI.Provider)
}

// ModelChain returns the ordered model codes of the active provider. The
// first code is the primary model; later codes are fallbacks.
func (c *Config) ModelChain() []string {
	provider, ok := c.ActiveProvider()
	if !ok {
		return []string{}
	}

	chain := make([]string, 0, len(provider.Models))
	for _, m := range provider.Models {
		chain = append(chain, m.Code)
	}
	return chain
}

// ValidateAI checks that the AI subsystem has a usable provider, credentials,
// and at least one model. It is called once at startup; a failure here is
// fatal for the AI subsystem.
func (c *Config) ValidateAI() error {
	provider, ok := c.ActiveProvider()
	if !ok {
		return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown provider %q", c.AI.Provider)
	}

	if strings.TrimSpace(provider.URL) == "" {
		return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q has no url", provider.Code)
	}

	if strings.TrimSpace(provider.APIKey) == "" {
		return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q has no api key", provider.Code)
	}

	if len(provider.Models) == 0 {
		return contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "provider %q has no models", provider.Code)
	}

	return nil
}

// IsSignupDisabled returns whether signups are disabled based on configuration
func (c *Config) IsSignupDisabled() bool {
	if c.System == nil {
		return false
	}
	return c.System.Auth.SignupsDisabled
}

// IsEmailAllowed checks if an email is allowed despite disabled signups
func (c *Config) IsEmailAllowed(email string) bool {
	if c.System == nil || c.System.Auth.AllowedEmails == nil {
		return false
	}

	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if !contextutils.IsValidEmail(normalizedEmail) {
		return false
	}

	for _, allowedEmail := range c.System.Auth.AllowedEmails {
		if strings.ToLower(strings.TrimSpace(allowedEmail)) == normalizedEmail {
			return true
		}
	}
	return false
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	return config, nil
}

// applyDefaults fills in values that the file and environment left unset
func (c *Config) applyDefaults() {
	if c.AI.RequestTimeout == 0 {
		c.AI.RequestTimeout = AIRequestTimeout
	}
	if c.AI.MaxAttempts == 0 {
		c.AI.MaxAttempts = MaxRetryAttempts
	}
	if c.Server.MaxHistory == 0 {
		c.Server.MaxHistory = MaxHistoryMessages
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
			continue
		}

		// Get the yaml tag for the field
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		yamlTag = strings.Split(yamlTag, ",")[0]

		// Convert yaml tag to environment variable name
		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type() == reflect.TypeOf(time.Duration(0)) {
					if d, err := time.ParseDuration(envVal); err == nil {
						field.SetInt(int64(d))
					}
				} else if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if uintVal, err := strconv.ParseUint(envVal, 10, 64); err == nil {
					field.SetUint(uintVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Handle string slices (like CORS_ORIGINS)
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			// Recursively process nested structs with the field name as prefix
			if field.CanAddr() {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), fieldPrefix)
			}
		case reflect.Ptr:
			// Handle pointer to struct
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				fieldPrefix := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
				if prefix != "" {
					fieldPrefix = prefix + "_" + fieldPrefix
				}
				overrideStructFromEnvWithPrefix(field.Interface(), fieldPrefix)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file with potential local overrides
func loadConfigWithOverrides() (result0 *Config, err error) {
	// Try to load from environment variable first
	if envPath := os.Getenv("CODEBOT_CONFIG_FILE"); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// If no environment variable is set, try default config.yaml
	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
