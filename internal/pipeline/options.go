package pipeline

import (
	"github.com/google/uuid"

	"github.com/Iron-Ham/image2video/internal/logging"
)

// Option configures a Pipeline.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	logger   *logging.Logger
	newRunID func() string
}

func defaultConfig() pipelineConfig {
	return pipelineConfig{
		logger:   logging.NopLogger(),
		newRunID: uuid.NewString,
	}
}

// WithLogger sets the logger used for step and handler diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRunIDGenerator replaces the uuid-based run id generator.
func WithRunIDGenerator(fn func() string) Option {
	return func(c *pipelineConfig) {
		if fn != nil {
			c.newRunID = fn
		}
	}
}
