package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryMetrics handles custom metrics for Sentry
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordGenerationDuration records generation request duration
func (m *SentryMetrics) RecordGenerationDuration(ctx context.Context, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	// Create a span for generation tracking using the request context
	span := sentry.StartSpan(ctx, "generation.request")
	defer span.Finish()

	// Set span tags
	span.SetTag("success", fmt.Sprintf("%t", success))

	// Set span data
	span.SetData("duration_ms", duration.Milliseconds())
	span.SetData("success", success)

	// Set span status
	if success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}

	span.Description = fmt.Sprintf("Generation Request: %t", success)
}

// RecordExport records a MIDI file export
func (m *SentryMetrics) RecordExport(ctx context.Context, path string, noteCount int) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "midi.export")
	defer span.Finish()

	span.SetTag("path", path)
	span.SetData("note_count", noteCount)
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("MIDI Export: %s", path)
}

// RecordSync records a live-sync operation and its resolved mode
func (m *SentryMetrics) RecordSync(mode string, noteCount int) {
	if !m.enabled {
		return
	}

	// Sync runs outside a request transaction, so use a fresh context
	ctx := context.Background()
	span := sentry.StartSpan(ctx, "live.sync")
	defer span.Finish()

	span.SetTag("mode", mode)
	span.SetData("mode", mode)
	span.SetData("note_count", noteCount)

	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Live Sync: %s", mode)
}
