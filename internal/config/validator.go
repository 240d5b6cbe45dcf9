package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the typed view of the global Config that the daemon runs with.
type Settings struct {
	RemoteURL      string        `field:"remote_url" validate:"required,url"`
	RemoteToken    string        `field:"remote_token"`
	PollInterval   time.Duration `field:"poll_interval" validate:"gt=0"`
	MaxConcurrency int           `field:"max_concurrency" validate:"min=1"`
	JobWorkers     int           `field:"job_workers" validate:"min=1"`
	JobQueueDepth  int           `field:"job_queue_depth" validate:"min=1"`
	JobTimeout     time.Duration `field:"job_timeout" validate:"gt=0"`
	ShutdownGrace  time.Duration `field:"shutdown_grace" validate:"gte=0"`
	StoragePath    string        `field:"storage_path"`
	MetricsAddr    string        `field:"metrics_addr"`
	LogLevel       string        `field:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `field:"log_format" validate:"oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		return sf.Tag.Get("field")
	})
	return v
}

// DecodeSettings converts a loaded global Config into Settings and checks
// the values. Every problem is reported in one error.
func DecodeSettings(c *Config) (*Settings, error) {
	if c.Schema() != SchemaGlobal {
		return nil, fmt.Errorf("config: settings need the %s schema, got %s", SchemaGlobal, c.Schema())
	}
	s := &Settings{
		RemoteURL:      c.String("remote_url"),
		RemoteToken:    c.String("remote_token"),
		PollInterval:   c.Seconds("poll_interval"),
		MaxConcurrency: c.Int("max_concurrency"),
		JobWorkers:     c.Int("job_workers"),
		JobQueueDepth:  c.Int("job_queue_depth"),
		JobTimeout:     c.Seconds("job_timeout"),
		ShutdownGrace:  c.Seconds("shutdown_grace"),
		StoragePath:    c.String("storage_path"),
		MetricsAddr:    c.String("metrics_addr"),
		LogLevel:       strings.ToLower(c.String("log_level")),
		LogFormat:      strings.ToLower(c.String("log_format")),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks every field constraint and reports each violation as a ValueError.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &ValueError{
			Schema: SchemaGlobal,
			Name:   fe.Field(),
			Reason: describeViolation(fe),
		})
	}
	return errors.Join(errs...)
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be set"
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}
