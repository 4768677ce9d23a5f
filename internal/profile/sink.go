// Package profile persists onboarding submissions on a best-effort basis.
package profile

import (
	"context"
	"errors"

	"github.com/ashureev/cognify/internal/domain"
)

// ErrSinkDisabled is returned by the disabled sink.
var ErrSinkDisabled = errors.New("profile storage is not configured")

// Sink appends one record to external storage.
type Sink interface {
	Save(ctx context.Context, rec domain.ProfileRecord) error
	Name() string
}

type disabledSink struct{}

// Disabled returns a sink that always fails with ErrSinkDisabled.
func Disabled() Sink { return disabledSink{} }

func (disabledSink) Save(context.Context, domain.ProfileRecord) error { return ErrSinkDisabled }
func (disabledSink) Name() string                                     { return "none" }

// Appender is the part of the repository the local sink needs.
type Appender interface {
	AppendProfile(ctx context.Context, rec domain.ProfileRecord) error
}

type repositorySink struct {
	repo Appender
}

// NewRepositorySink stores records in the local database.
func NewRepositorySink(repo Appender) Sink {
	return &repositorySink{repo: repo}
}

func (s *repositorySink) Save(ctx context.Context, rec domain.ProfileRecord) error {
	return s.repo.AppendProfile(ctx, rec)
}

func (s *repositorySink) Name() string { return "sqlite" }
