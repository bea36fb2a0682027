package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Iron-Ham/image2video/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.timeout_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidStores returns the list of valid session store backends
func ValidStores() []string {
	return []string{StoreMemory, StoreRedis}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateCredentials()...)
	errors = append(errors, c.validateImageHost()...)
	errors = append(errors, c.validateVideo()...)
	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateHTTP()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateCredentials checks the four required keys
func (c *Config) validateCredentials() []ValidationError {
	var errors []ValidationError

	required := []struct {
		field string
		value string
	}{
		{"api_url", c.APIURL},
		{"image_host_api_key", c.ImageHostAPIKey},
		{"key_id", c.KeyID},
		{"secret", c.Secret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errors = append(errors, ValidationError{
				Field:   r.field,
				Value:   r.value,
				Message: "is required",
			})
		}
	}

	if c.APIURL != "" && !isHTTPURL(c.APIURL) {
		errors = append(errors, ValidationError{
			Field:   "api_url",
			Value:   c.APIURL,
			Message: "must be an absolute http(s) URL",
		})
	}

	return errors
}

// validateImageHost validates the ImageHostConfig
func (c *Config) validateImageHost() []ValidationError {
	var errors []ValidationError

	if c.ImageHost.Endpoint != "" && !isHTTPURL(c.ImageHost.Endpoint) {
		errors = append(errors, ValidationError{
			Field:   "image_host.endpoint",
			Value:   c.ImageHost.Endpoint,
			Message: "must be an absolute http(s) URL",
		})
	}

	return errors
}

// validateVideo validates the VideoConfig
func (c *Config) validateVideo() []ValidationError {
	var errors []ValidationError

	if c.Video.CfgScale < 0 || c.Video.CfgScale > 1 {
		errors = append(errors, ValidationError{
			Field:   "video.cfg_scale",
			Value:   c.Video.CfgScale,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.timeout_seconds",
			Value:   c.Session.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	if strings.TrimSpace(c.Session.TriggerPrefix) == "" {
		errors = append(errors, ValidationError{
			Field:   "session.trigger_prefix",
			Value:   c.Session.TriggerPrefix,
			Message: "must not be empty",
		})
	}

	if c.Session.Store != "" && !slices.Contains(ValidStores(), c.Session.Store) {
		errors = append(errors, ValidationError{
			Field:   "session.store",
			Value:   c.Session.Store,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStores(), ", ")),
		})
	}

	if c.Session.Store == StoreRedis && c.Session.RedisAddr == "" {
		errors = append(errors, ValidationError{
			Field:   "session.redis_addr",
			Value:   c.Session.RedisAddr,
			Message: "is required when session.store is redis",
		})
	}

	return errors
}

// validateHTTP validates the HTTPConfig
func (c *Config) validateHTTP() []ValidationError {
	var errors []ValidationError

	if c.HTTP.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "http.timeout_seconds",
			Value:   c.HTTP.TimeoutSeconds,
			Message: "must be non-negative",
		})
	}

	if c.HTTP.MaxAttempts < 1 || c.HTTP.MaxAttempts > 10 {
		errors = append(errors, ValidationError{
			Field:   "http.max_attempts",
			Value:   c.HTTP.MaxAttempts,
			Message: "must be between 1 and 10",
		})
	}

	if c.HTTP.RetryWaitMinMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "http.retry_wait_min_ms",
			Value:   c.HTTP.RetryWaitMinMs,
			Message: "must be non-negative",
		})
	}

	if c.HTTP.RetryWaitMaxMs < c.HTTP.RetryWaitMinMs {
		errors = append(errors, ValidationError{
			Field:   "http.retry_wait_max_ms",
			Value:   c.HTTP.RetryWaitMaxMs,
			Message: "must be at least http.retry_wait_min_ms",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !logging.IsValidLevel(c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.ToLower(strings.Join(logging.ValidLevels(), ", "))),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
