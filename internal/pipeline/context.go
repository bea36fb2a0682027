package pipeline

import (
	"maps"
	"slices"

	"github.com/Iron-Ham/image2video/internal/errors"
)

// Metadata keys written by the pipeline and the standard error handlers.
const (
	MetaPipelineName     = "pipeline_name"
	MetaRunID            = "run_id"
	MetaErrorMessage     = "error_message"
	MetaValidationFailed = "validation_failed"
	MetaUploadFailed     = "upload_failed"
	MetaGenerationFailed = "generation_failed"
)

// Context is the state threaded through one pipeline run. Data is the
// working payload, Metadata is a side channel for diagnostics and outcome
// flags, and Errors holds the failures recorded so far. A Context belongs to
// exactly one run and is not safe for concurrent use.
type Context struct {
	Data     map[string]any
	Metadata map[string]any
	Errors   []error
}

// NewContext creates a Context seeded with a copy of data.
func NewContext(data map[string]any) *Context {
	d := make(map[string]any, len(data))
	maps.Copy(d, data)
	return &Context{
		Data:     d,
		Metadata: make(map[string]any),
	}
}

// Get returns the Data value for key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Data[key]
	return v, ok
}

// GetString returns the Data value for key if it is a string.
// The second result reports whether the key was present at all.
func (c *Context) GetString(key string) (string, bool) {
	v, ok := c.Data[key]
	if !ok || v == nil {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// Set stores a Data value.
func (c *Context) Set(key string, value any) {
	c.Data[key] = value
}

// SetMeta stores a Metadata value.
func (c *Context) SetMeta(key string, value any) {
	c.Metadata[key] = value
}

// MetaString returns the Metadata value for key as a string, or "".
func (c *Context) MetaString(key string) string {
	s, _ := c.Metadata[key].(string)
	return s
}

// MetaBool returns the Metadata value for key as a bool, or false.
func (c *Context) MetaBool(key string) bool {
	b, _ := c.Metadata[key].(bool)
	return b
}

// AddError records a failure.
func (c *Context) AddError(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Failed reports whether any error was recorded.
func (c *Context) Failed() bool {
	return len(c.Errors) > 0
}

// Err joins the recorded errors, or returns nil.
func (c *Context) Err() error {
	if len(c.Errors) == 0 {
		return nil
	}
	return errors.Join(c.Errors...)
}

// Clone returns a copy of c whose maps and error slice can be changed
// without affecting c. Values are copied shallowly.
func (c *Context) Clone() *Context {
	return &Context{
		Data:     maps.Clone(c.Data),
		Metadata: maps.Clone(c.Metadata),
		Errors:   slices.Clone(c.Errors),
	}
}
