package errors

import "context"

// Tracker is the error reporting backend. The Sentry adapter implements
// it for real; the noop adapter is used when no DSN is configured.
type Tracker interface {
	// CaptureError reports an error with optional tags.
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	// CaptureMessage reports a plain message at the given severity.
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// SetUser attaches operator identity to subsequent reports.
	SetUser(ctx context.Context, userID string, email string, username string)

	// AddBreadcrumb records an action for error context trails.
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until pending reports are delivered; called on shutdown.
	Flush(ctx context.Context) error
}

// Level is the severity attached to tracked messages and breadcrumbs.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string { return string(l) }
