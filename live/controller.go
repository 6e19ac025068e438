package live

import (
	"errors"
	"fmt"
	"log"

	"github.com/Conceptual-Machines/musicflow/metrics"
	"github.com/Conceptual-Machines/musicflow/models"
	"github.com/Conceptual-Machines/musicflow/registry"
)

// TrackAll fans a transport command out to every synced track.
const TrackAll = "all"

// ErrNoBinding is returned for transport commands on a track that has
// never been synced into the session.
var ErrNoBinding = errors.New("track has no live binding")

// SyncMode tags how a sync was satisfied.
type SyncMode string

const (
	// SyncModeAuto - notes were uploaded through the protocol.
	SyncModeAuto SyncMode = "auto"
	// SyncModeManual - the protocol path is unavailable; the MIDI file is
	// the artifact to import by hand.
	SyncModeManual SyncMode = "manual"
	// SyncModeNoop - the bound clip already matches the current revision.
	SyncModeNoop SyncMode = "noop"
)

// SyncResult reports the outcome of one sync operation.
type SyncResult struct {
	TrackName  string
	Mode       SyncMode
	State      registry.SyncState
	TrackIndex int
	ClipIndex  int
	NotesSent  int
	MIDIPath   string
	Message    string
}

// TransportResult is one track's outcome of a play/stop fan-out.
type TransportResult struct {
	TrackName string
	Err       error
}

// ArtifactLocator resolves the durable MIDI file for a track, surfaced to
// the user whenever sync degrades to manual import.
type ArtifactLocator interface {
	PathFor(trackName string) string
}

// Controller maps track registry entries onto the remote DAW session.
// It owns the per-track binding state machine (unbound -> bound -> stale
// -> bound, with bound-manual as the sticky fallback lane) while the Conn
// owns the transport session itself.
type Controller struct {
	conn      *Conn
	reg       *registry.Registry
	artifacts ArtifactLocator
	metrics   *metrics.SentryMetrics
}

// NewController creates a live-sync controller over an existing session
// handle. The conn may be unconnected; the controller then reports manual
// mode until a reconnect succeeds.
func NewController(conn *Conn, reg *registry.Registry, artifacts ArtifactLocator) *Controller {
	return &Controller{
		conn:      conn,
		reg:       reg,
		artifacts: artifacts,
		metrics:   metrics.NewSentryMetrics(),
	}
}

// Enabled reports whether a live session was ever established.
func (c *Controller) Enabled() bool {
	return c.conn != nil && c.conn.State() != StateUnconnected
}

// Sync reconciles one track's clip with its current registry content.
func (c *Controller) Sync(trackName string) (*SyncResult, error) {
	return c.sync(trackName, false)
}

// Reprobe is a sync that retries the automatic protocol path even for a
// track previously parked in manual mode.
func (c *Controller) Reprobe(trackName string) (*SyncResult, error) {
	return c.sync(trackName, true)
}

// SyncTrack satisfies the generation engine's post-generate hook: it syncs
// and logs, leaving sync degradation out of the generate/update result.
func (c *Controller) SyncTrack(trackName string) error {
	result, err := c.Sync(trackName)
	if err != nil {
		return err
	}
	switch result.Mode {
	case SyncModeManual:
		log.Printf("🖐  %s: manual mode - import %s into the DAW by hand", trackName, result.MIDIPath)
	case SyncModeAuto:
		log.Printf("🎛  %s: uploaded %d notes to track %d", trackName, result.NotesSent, result.TrackIndex)
	}
	return nil
}

func (c *Controller) sync(trackName string, reprobe bool) (*SyncResult, error) {
	entry, ok := c.reg.Get(trackName)
	if !ok {
		return nil, fmt.Errorf("sync: %w: %s", registry.ErrUnknownTrack, trackName)
	}
	content := entry.Content

	// A degraded session gets one retry before we fall back.
	if c.conn.State() == StateDegraded {
		if err := c.conn.Ping(); err != nil {
			log.Printf("💔 Sync retry probe failed: %v", err)
		}
	}
	if !c.conn.IsAlive() {
		return c.manualResult(trackName, content, "live session unavailable"), nil
	}

	switch entry.State() {
	case registry.StateBound:
		if entry.Binding.LastSyncedRevision == content.Revision {
			// Already reconciled: zero protocol commands.
			return &SyncResult{
				TrackName:  trackName,
				Mode:       SyncModeNoop,
				State:      registry.StateBound,
				TrackIndex: entry.Binding.TrackIndex,
				ClipIndex:  entry.Binding.ClipIndex,
			}, nil
		}
	case registry.StateBoundManual:
		if !reprobe {
			// Manual mode is sticky: skip the automatic attempt entirely.
			result := c.manualResult(trackName, content, "manual mode active")
			c.bindManual(trackName, entry.Binding.TrackIndex, content.Revision)
			return result, nil
		}
	}

	return c.autoSync(trackName, entry, content)
}

// autoSync performs the automatic protocol path: clear any prior clip,
// create a fresh one at the stable track index, then batch-upload notes.
func (c *Controller) autoSync(trackName string, entry *registry.Entry, content *models.TrackContent) (*SyncResult, error) {
	trackIndex := c.reg.NextTrackIndex()
	clipIndex := 0
	rebinding := entry.Binding != nil
	if rebinding {
		trackIndex = entry.Binding.TrackIndex
		clipIndex = entry.Binding.ClipIndex
	}
	lengthBeats := content.LengthBeats()

	// Clear-before-create: a prior clip at the bound slot is deleted first.
	if rebinding {
		if err := c.conn.Request(cmdDeleteClip, trackIndex, clipIndex); err != nil {
			return c.fallBack(trackName, content, trackIndex, fmt.Errorf("delete clip: %w", err))
		}
	}

	if err := c.conn.Request(cmdCreateClip, trackIndex, clipIndex, lengthBeats); err != nil {
		return c.fallBack(trackName, content, trackIndex, fmt.Errorf("create clip: %w", err))
	}

	if err := c.addNotes(trackIndex, clipIndex, content.Notes); err != nil {
		return c.fallBack(trackName, content, trackIndex, err)
	}

	// Loop the clip over its full bar length so it plays as generated.
	_ = c.conn.Request(cmdSetLoopStart, trackIndex, clipIndex, 0.0)
	_ = c.conn.Request(cmdSetLoopEnd, trackIndex, clipIndex, lengthBeats)
	_ = c.conn.Request(cmdSetLooping, trackIndex, clipIndex, 1)

	if err := c.reg.Bind(trackName, registry.ClipBinding{
		TrackIndex:         trackIndex,
		ClipIndex:          clipIndex,
		LastSyncedRevision: content.Revision,
		State:              registry.StateBound,
	}); err != nil {
		return nil, err
	}

	c.metrics.RecordSync(string(SyncModeAuto), len(content.Notes))
	return &SyncResult{
		TrackName:  trackName,
		Mode:       SyncModeAuto,
		State:      registry.StateBound,
		TrackIndex: trackIndex,
		ClipIndex:  clipIndex,
		NotesSent:  len(content.Notes),
	}, nil
}

// addNotes uploads every note in one batch command and requires an
// acknowledgement: an unsupported surface answers with an error or not at
// all, and either rejection triggers the manual fallback.
func (c *Controller) addNotes(trackIndex, clipIndex int, notes []models.Note) error {
	args := make([]any, 0, 2+len(notes)*5)
	args = append(args, trackIndex, clipIndex)
	for _, n := range notes {
		mute := 0
		args = append(args, n.MidiNoteNumber, n.StartBeats, n.DurationBeats, n.Velocity, mute)
	}

	reply, err := c.conn.SendAndWait(cmdAddNotes, commandTimeout, args...)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("add notes: %w", ErrProtocolUnsupported)
		}
		return fmt.Errorf("add notes: %w", err)
	}
	if replyIsError(reply) {
		return fmt.Errorf("add notes rejected: %w", ErrProtocolUnsupported)
	}
	return nil
}

// fallBack parks the track in manual mode: the sync still succeeds, with
// the MIDI file as the artifact the user imports by hand.
func (c *Controller) fallBack(trackName string, content *models.TrackContent, trackIndex int, cause error) (*SyncResult, error) {
	log.Printf("🖐  %s: automatic upload unavailable (%v), switching to manual import", trackName, cause)
	c.bindManual(trackName, trackIndex, content.Revision)
	c.metrics.RecordSync(string(SyncModeManual), 0)

	result := c.manualResult(trackName, content, fmt.Sprintf("automatic upload rejected: %v", cause))
	result.TrackIndex = trackIndex
	result.State = registry.StateBoundManual
	return result, nil
}

func (c *Controller) bindManual(trackName string, trackIndex int, revision int) {
	_ = c.reg.Bind(trackName, registry.ClipBinding{
		TrackIndex:         trackIndex,
		ClipIndex:          0,
		LastSyncedRevision: revision,
		State:              registry.StateBoundManual,
	})
}

func (c *Controller) manualResult(trackName string, content *models.TrackContent, message string) *SyncResult {
	path := ""
	if c.artifacts != nil {
		path = c.artifacts.PathFor(trackName)
	}
	return &SyncResult{
		TrackName: trackName,
		Mode:      SyncModeManual,
		State:     registry.StateBoundManual,
		MIDIPath:  path,
		Message:   message,
	}
}

// Play fires the clip for one track, or for every synced track with ALL.
// Fan-out collects per-track results instead of aborting the batch.
func (c *Controller) Play(trackName string) ([]TransportResult, error) {
	return c.transport(trackName, c.playOne, func() error {
		return c.conn.Send(cmdStartPlaying, 1)
	})
}

// Stop stops the clip for one track, or global playback with ALL.
func (c *Controller) Stop(trackName string) ([]TransportResult, error) {
	return c.transport(trackName, c.stopOne, func() error {
		return c.conn.Send(cmdStopPlaying, 1)
	})
}

func (c *Controller) transport(trackName string, one func(*registry.Entry) error, all func() error) ([]TransportResult, error) {
	if !c.conn.IsAlive() {
		return nil, ErrNotConnected
	}

	if trackName != TrackAll {
		entry, ok := c.reg.Get(trackName)
		if !ok {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTrack, trackName)
		}
		if entry.Binding == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoBinding, trackName)
		}
		return []TransportResult{{TrackName: trackName, Err: one(entry)}}, nil
	}

	results := make([]TransportResult, 0, c.reg.Len())
	for _, name := range c.reg.List() {
		entry, ok := c.reg.Get(name)
		if !ok {
			continue
		}
		if entry.Binding == nil {
			results = append(results, TransportResult{TrackName: name, Err: fmt.Errorf("%w: %s", ErrNoBinding, name)})
			continue
		}
		results = append(results, TransportResult{TrackName: name, Err: one(entry)})
	}
	if err := all(); err != nil {
		log.Printf("⚠️  Global transport command failed: %v", err)
	}
	return results, nil
}

func (c *Controller) playOne(entry *registry.Entry) error {
	return c.conn.Send(cmdFireClip, entry.Binding.TrackIndex, entry.Binding.ClipIndex)
}

func (c *Controller) stopOne(entry *registry.Entry) error {
	return c.conn.Send(cmdStopClip, entry.Binding.TrackIndex, entry.Binding.ClipIndex)
}

// TrackStatus is one row of the status query.
type TrackStatus struct {
	TrackName  string
	Revision   int
	State      registry.SyncState
	TrackIndex int
}

// Status reports the session state plus every track's binding state.
type Status struct {
	Session   State
	SessionID string
	Tracks    []TrackStatus
}

// Status returns the connection and per-track binding states.
func (c *Controller) Status() Status {
	st := Status{
		Session:   c.conn.State(),
		SessionID: c.conn.SessionID(),
	}
	for _, name := range c.reg.List() {
		entry, ok := c.reg.Get(name)
		if !ok {
			continue
		}
		ts := TrackStatus{
			TrackName: name,
			Revision:  entry.Content.Revision,
			State:     entry.State(),
		}
		if entry.Binding != nil {
			ts.TrackIndex = entry.Binding.TrackIndex
		} else {
			ts.TrackIndex = -1
		}
		st.Tracks = append(st.Tracks, ts)
	}
	return st
}

func replyIsError(reply []any) bool {
	for _, arg := range reply {
		if s, ok := arg.(string); ok && s == "error" {
			return true
		}
	}
	return false
}
