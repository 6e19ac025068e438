// Package engine owns the track generation/update state machine: it calls
// the text-to-music collaborator, validates its output, and on success -
// and only on success - writes the new content into the track registry and
// triggers the MIDI exporter and live sync.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Conceptual-Machines/musicflow/config"
	"github.com/Conceptual-Machines/musicflow/live"
	"github.com/Conceptual-Machines/musicflow/llm"
	"github.com/Conceptual-Machines/musicflow/metrics"
	"github.com/Conceptual-Machines/musicflow/models"
	"github.com/Conceptual-Machines/musicflow/prompt"
	"github.com/Conceptual-Machines/musicflow/registry"
)

const outputSchemaName = "track_output"

// GenerationError reports a failed collaborator call or malformed output.
// The registry is guaranteed untouched when one is returned.
type GenerationError struct {
	TrackName string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %q: %v", e.TrackName, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Exporter is the durable-artifact sink triggered after every successful
// generation.
type Exporter interface {
	Export(content *models.TrackContent) (string, error)
}

// LiveSync is the optional DAW mirror triggered after every successful
// generation while a session is connected.
type LiveSync interface {
	Enabled() bool
	Sync(trackName string) (*live.SyncResult, error)
}

// Result contains one successful generate/update outcome.
type Result struct {
	Content     *models.TrackContent
	MIDIPath    string
	Description string
	Sync        *live.SyncResult
	Usage       any
}

// Engine drives track generation through an LLM provider.
type Engine struct {
	provider llm.Provider
	reg      *registry.Registry
	exporter Exporter
	liveSync LiveSync
	prompts  *prompt.MusicFlowPromptBuilder
	model    string
	timeout  time.Duration
	metrics  *metrics.SentryMetrics
}

// NewEngine creates a generation engine. A nil provider is resolved through
// the provider factory from the configured model name and API keys, so a
// Gemini-only configuration routes to Gemini without extra wiring.
func NewEngine(cfg *config.Config, provider llm.Provider, reg *registry.Registry, exporter Exporter, liveSync LiveSync) (*Engine, error) {
	if provider == nil {
		factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
		resolved, err := factory.GetProvider(context.Background(), cfg.Model, "")
		if err != nil {
			return nil, fmt.Errorf("resolve provider for model %q: %w", cfg.Model, err)
		}
		provider = resolved
	}

	engine := &Engine{
		provider: provider,
		reg:      reg,
		exporter: exporter,
		liveSync: liveSync,
		prompts:  prompt.NewMusicFlowPromptBuilder(),
		model:    cfg.Model,
		timeout:  cfg.GenerationTimeout,
		metrics:  metrics.NewSentryMetrics(),
	}

	log.Printf("🎼 GENERATION ENGINE INITIALIZED:")
	log.Printf("   Provider: %s, Model: %s", provider.Name(), cfg.Model)

	return engine, nil
}

// Generate creates a brand new track from a natural language prompt.
// Fails with registry.ErrDuplicateTrack when the name is already taken.
func (e *Engine) Generate(ctx context.Context, trackName, userPrompt string) (*Result, error) {
	return e.generate(ctx, trackName, userPrompt, false)
}

// Regenerate is a generate that explicitly overwrites an existing track,
// replacing its content while keeping the revision counter moving forward.
func (e *Engine) Regenerate(ctx context.Context, trackName, userPrompt string) (*Result, error) {
	return e.generate(ctx, trackName, userPrompt, true)
}

func (e *Engine) generate(ctx context.Context, trackName, userPrompt string, overwrite bool) (*Result, error) {
	prior, exists := e.reg.Content(trackName)
	if exists && !overwrite {
		return nil, fmt.Errorf("%w: %s (use update)", registry.ErrDuplicateTrack, trackName)
	}

	startTime := time.Now()
	log.Printf("🎼 GENERATE %q: %s", trackName, userPrompt)

	transaction := sentry.StartTransaction(ctx, "engine.generate")
	defer transaction.Finish()
	transaction.SetTag("track", trackName)

	output, usage, err := e.callCollaborator(ctx, e.prompts.BuildGeneratePrompt(trackName, userPrompt))
	if err != nil {
		transaction.SetTag("success", "false")
		e.metrics.RecordGenerationDuration(ctx, time.Since(startTime), false)
		return nil, &GenerationError{TrackName: trackName, Err: err}
	}

	sigNum, sigDen := models.ParseTimeSignature(output.TimeSignature)
	content := models.NewTrackContent(trackName, output.BPM, sigNum, sigDen, output.Notes, userPrompt)
	if exists {
		content = prior.NextRevision(output.BPM, sigNum, sigDen, output.Notes, userPrompt)
	}

	result, err := e.commit(ctx, content, output.Description, usage)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	transaction.SetTag("note_count", fmt.Sprintf("%d", len(content.Notes)))
	e.metrics.RecordGenerationDuration(ctx, time.Since(startTime), true)

	log.Printf("✅ GENERATED %q: %d notes at %.0f BPM (rev %d)",
		trackName, len(content.Notes), content.BPM, content.Revision)
	return result, nil
}

// Update revises an existing track with an incremental edit. Fails with
// registry.ErrUnknownTrack when the name was never generated.
func (e *Engine) Update(ctx context.Context, trackName, userPrompt string) (*Result, error) {
	prior, ok := e.reg.Content(trackName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTrack, trackName)
	}

	startTime := time.Now()
	log.Printf("🎼 UPDATE %q (rev %d): %s", trackName, prior.Revision, userPrompt)

	transaction := sentry.StartTransaction(ctx, "engine.update")
	defer transaction.Finish()
	transaction.SetTag("track", trackName)

	output, usage, err := e.callCollaborator(ctx, e.prompts.BuildUpdatePrompt(prior, userPrompt))
	if err != nil {
		transaction.SetTag("success", "false")
		e.metrics.RecordGenerationDuration(ctx, time.Since(startTime), false)
		return nil, &GenerationError{TrackName: trackName, Err: err}
	}

	sigNum, sigDen := models.ParseTimeSignature(output.TimeSignature)
	content := prior.NextRevision(output.BPM, sigNum, sigDen, output.Notes, userPrompt)

	result, err := e.commit(ctx, content, output.Description, usage)
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	e.metrics.RecordGenerationDuration(ctx, time.Since(startTime), true)

	log.Printf("✅ UPDATED %q: %d notes (rev %d)", trackName, len(content.Notes), content.Revision)
	return result, nil
}

// callCollaborator invokes the provider with a bounded timeout and
// validates the structured output. The collaborator is treated as
// unreliable: empty or out-of-range output is an error, never registered.
func (e *Engine) callCollaborator(ctx context.Context, userContent string) (*models.TrackOutput, any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	request := &llm.GenerationRequest{
		Model: e.model,
		InputArray: []map[string]any{
			{"role": "user", "content": userContent},
		},
		SystemPrompt: e.prompts.BuildSystemPrompt(),
		OutputSchema: &llm.OutputSchema{
			Name:        outputSchemaName,
			Description: "MIDI track content generated from a natural language prompt",
			Schema:      llm.GetTrackOutputSchema(),
		},
	}

	resp, err := e.provider.Generate(ctx, request)
	if err != nil {
		return nil, nil, fmt.Errorf("provider request failed: %w", err)
	}

	output := resp.Output
	if err := validateOutput(&output); err != nil {
		return nil, nil, err
	}
	return &output, resp.Usage, nil
}

// commit runs the success side effects in an order that keeps the
// registry untouched on any failure: export first, then registry write,
// then the best-effort live sync.
func (e *Engine) commit(ctx context.Context, content *models.TrackContent, description string, usage any) (*Result, error) {
	path, err := e.exporter.Export(content)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordExport(ctx, path, len(content.Notes))

	e.reg.Put(content)

	result := &Result{
		Content:     content,
		MIDIPath:    path,
		Description: description,
		Usage:       usage,
	}

	// Live sync degradation never fails a generate/update.
	if e.liveSync != nil && e.liveSync.Enabled() {
		syncResult, syncErr := e.liveSync.Sync(content.TrackName)
		if syncErr != nil {
			log.Printf("⚠️  Live sync for %q failed: %v", content.TrackName, syncErr)
		} else {
			result.Sync = syncResult
		}
	}

	return result, nil
}

func validateOutput(output *models.TrackOutput) error {
	if len(output.Notes) == 0 {
		return fmt.Errorf("collaborator returned no notes")
	}
	for i, n := range output.Notes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("note %d invalid: %w", i, err)
		}
	}
	return nil
}
