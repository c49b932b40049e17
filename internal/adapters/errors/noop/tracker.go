// Package noop provides the tracker used when Sentry is not configured.
package noop

import (
	"context"

	"resonance/pkg/errors"
)

// Tracker discards everything. It stands in for Sentry in tests and in
// environments without a DSN.
type Tracker struct{}

func New() *Tracker { return &Tracker{} }

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (t *Tracker) SetUser(ctx context.Context, userID string, email string, username string) {}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (t *Tracker) Flush(ctx context.Context) error { return nil }
