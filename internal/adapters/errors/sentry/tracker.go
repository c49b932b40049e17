// Package sentry reports errors and messages to Sentry.
package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"resonance/pkg/errors"
)

const flushTimeout = 2 * time.Second

var levelMap = map[errors.Level]sentry.Level{
	errors.LevelDebug:   sentry.LevelDebug,
	errors.LevelInfo:    sentry.LevelInfo,
	errors.LevelWarning: sentry.LevelWarning,
	errors.LevelError:   sentry.LevelError,
	errors.LevelFatal:   sentry.LevelFatal,
}

func toSentryLevel(level errors.Level) sentry.Level {
	if l, ok := levelMap[level]; ok {
		return l
	}
	return sentry.LevelInfo
}

// Tracker is the Sentry-backed errors.Tracker.
type Tracker struct {
	hub *sentry.Hub
}

// New initializes the Sentry client and returns a tracker bound to the
// current hub.
func New(dsn string, environment string) (*Tracker, error) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return nil, err
	}
	return &Tracker{hub: sentry.CurrentHub()}, nil
}

// CaptureError reports err with the given tags. Scope changes happen on
// a cloned hub so concurrent captures do not leak tags into each other.
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		applyTags(scope, tags)
		if userID, ok := ctx.Value("user_id").(string); ok {
			scope.SetUser(sentry.User{ID: userID})
		}
	})
	hub.CaptureException(err)
	return nil
}

// CaptureMessage reports a plain message at the given level.
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		applyTags(scope, tags)
		scope.SetLevel(toSentryLevel(level))
	})
	hub.CaptureMessage(message)
	return nil
}

// SetUser attaches operator identity to subsequent events on this hub.
func (t *Tracker) SetUser(ctx context.Context, userID string, email string, username string) {
	t.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID:       userID,
			Email:    email,
			Username: username,
		})
	})
}

// AddBreadcrumb records an action leading up to a potential error.
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:  message,
		Category: category,
		Level:    toSentryLevel(level),
		Data:     data,
	}, &sentry.BreadcrumbHint{})
}

// Flush blocks until pending events are sent or the timeout passes.
// Sentry reports the timeout as a bool; either way shutdown proceeds.
func (t *Tracker) Flush(ctx context.Context) error {
	sentry.Flush(flushTimeout)
	return nil
}

func applyTags(scope *sentry.Scope, tags map[string]string) {
	for k, v := range tags {
		scope.SetTag(k, v)
	}
}
