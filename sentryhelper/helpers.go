// Package sentryhelper manages Sentry transactions and scope isolation for
// the long-running pipelines (imports, recommendation runs) so their
// breadcrumbs do not bleed into unrelated requests.
package sentryhelper

import (
	"context"

	sentry "github.com/getsentry/sentry-go"
)

type contextKey string

const hubContextKey contextKey = "sentry_hub"

// StartImportTransaction opens a transaction for one external import run.
// The hub is cloned so breadcrumbs recorded during scraping and matching
// stay attached to this import only.
func StartImportTransaction(ctx context.Context, sourceURL string) (context.Context, *sentry.Span) {
	hub := sentry.CurrentHub().Clone()
	ctx = context.WithValue(ctx, hubContextKey, hub)

	transaction := sentry.StartTransaction(ctx, "import.applemusic",
		sentry.WithOpName("import"),
		sentry.WithTransactionSource(sentry.SourceTask),
	)
	transaction.SetTag("source", "applemusic")
	transaction.SetData("source_url", sourceURL)

	hub.Scope().SetSpan(transaction)
	return transaction.Context(), transaction
}

// StartRecommendationTransaction opens a transaction for one recommendation
// run seeded from play history.
func StartRecommendationTransaction(ctx context.Context, seedCount int) (context.Context, *sentry.Span) {
	hub := sentry.CurrentHub().Clone()
	ctx = context.WithValue(ctx, hubContextKey, hub)

	transaction := sentry.StartTransaction(ctx, "recommend.generate",
		sentry.WithOpName("recommend"),
		sentry.WithTransactionSource(sentry.SourceTask),
	)
	transaction.SetData("seed_count", seedCount)

	hub.Scope().SetSpan(transaction)
	return transaction.Context(), transaction
}

// HubFromContext retrieves the cloned hub from context, falling back to the
// process-wide hub when none was attached.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return sentry.CurrentHub()
	}
	if hub, ok := ctx.Value(hubContextKey).(*sentry.Hub); ok && hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// AddBreadcrumb records a breadcrumb on the hub in context.
func AddBreadcrumb(ctx context.Context, breadcrumb *sentry.Breadcrumb) {
	HubFromContext(ctx).AddBreadcrumb(breadcrumb, nil)
}

// CaptureException captures an error on the hub in context.
func CaptureException(ctx context.Context, err error) *sentry.EventID {
	return HubFromContext(ctx).CaptureException(err)
}

// CaptureMessage captures a non-error event on the hub in context.
func CaptureMessage(ctx context.Context, message string) *sentry.EventID {
	return HubFromContext(ctx).CaptureMessage(message)
}

// ConfigureScope adjusts the scope on the hub in context.
func ConfigureScope(ctx context.Context, f func(*sentry.Scope)) {
	HubFromContext(ctx).ConfigureScope(f)
}
