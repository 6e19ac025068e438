package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/Conceptual-Machines/musicflow/config"
	"github.com/Conceptual-Machines/musicflow/engine"
	"github.com/Conceptual-Machines/musicflow/live"
	"github.com/Conceptual-Machines/musicflow/midifile"
	"github.com/Conceptual-Machines/musicflow/registry"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: Could not load .env file: %v", err)
		log.Println("   Continuing with environment variables...")
	}

	cfg := config.Load()
	if cfg.OpenAIAPIKey == "" && cfg.GeminiAPIKey == "" {
		log.Fatal("❌ ERROR: OPENAI_API_KEY (or GEMINI_API_KEY) is not set in environment!")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			log.Printf("⚠️  Sentry init failed: %v", err)
		}
	}

	exporter, err := midifile.NewExporter(cfg.OutputDir)
	if err != nil {
		log.Fatalf("❌ ERROR: output directory unusable: %v", err)
	}

	reg := registry.New()

	// A failed startup connect leaves live sync disabled until an explicit
	// `connect` succeeds; generation and export work regardless.
	conn := live.NewConn(cfg.LiveHost, cfg.LiveSendPort, cfg.LiveReceivePort)
	if err := conn.Connect(); err != nil {
		log.Printf("⚠️  Live session unavailable: %v", err)
		log.Printf("   MIDI files will still be generated; use `connect` to retry.")
	}
	controller := live.NewController(conn, reg, exporter)

	eng, err := engine.NewEngine(cfg, nil, reg, exporter, controller)
	if err != nil {
		log.Fatalf("❌ ERROR: %v", err)
	}

	shell := &shell{
		engine:     eng,
		controller: controller,
		conn:       conn,
		reg:        reg,
	}
	shell.run()
}

type shell struct {
	engine     *engine.Engine
	controller *live.Controller
	conn       *live.Conn
	reg        *registry.Registry
}

func (s *shell) run() {
	fmt.Println("MusicFlow - interactive MIDI generation")
	fmt.Println("Create music with natural language prompts. Type `help` for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nmusicflow> ")
		if !scanner.Scan() {
			break
		}
		if !s.dispatch(strings.TrimSpace(scanner.Text())) {
			break
		}
	}
	fmt.Println("Thanks for using MusicFlow!")
}

// dispatch parses one command line; returns false to exit the shell.
func (s *shell) dispatch(line string) bool {
	if line == "" {
		return true
	}

	ctx := context.Background()
	cmd, rest, _ := strings.Cut(line, " ")

	switch strings.ToLower(cmd) {
	case "exit", "quit":
		return false
	case "help":
		s.help()
	case "list":
		s.list()
	case "status":
		s.status()
	case "connect":
		s.connect()
	case "generate":
		name, prompt, ok := splitTrackPrompt(rest)
		if !ok {
			fmt.Println("Usage: generate <track>: <prompt>   e.g. generate bass: funky bassline in G minor")
			return true
		}
		s.report(s.engine.Generate(ctx, name, prompt))
	case "regenerate":
		name, prompt, ok := splitTrackPrompt(rest)
		if !ok {
			fmt.Println("Usage: regenerate <track>: <prompt>")
			return true
		}
		s.report(s.engine.Regenerate(ctx, name, prompt))
	case "update":
		name, prompt, ok := splitTrackPrompt(rest)
		if !ok {
			fmt.Println("Usage: update <track>: <prompt>   e.g. update drums: add more hi-hats")
			return true
		}
		s.report(s.engine.Update(ctx, name, prompt))
	case "load":
		s.load(strings.TrimSpace(rest), false)
	case "reprobe":
		s.load(strings.TrimSpace(rest), true)
	case "play":
		s.transport("play", rest)
	case "stop":
		s.transport("stop", rest)
	default:
		fmt.Printf("Unknown command %q - type `help` for commands.\n", cmd)
	}
	return true
}

func (s *shell) help() {
	fmt.Println(`Commands:
  generate <track>: <prompt>    Generate a new MIDI track
  update <track>: <prompt>      Revise an existing track incrementally
  regenerate <track>: <prompt>  Replace an existing track from scratch
  list                          List generated tracks
  load <track>                  Sync a track into the live session
  reprobe <track>               Retry automatic upload for a manual-mode track
  play [track|all]              Fire a track's clip (default: all)
  stop [track|all]              Stop a track's clip (default: all)
  status                        Connection and per-track binding state
  connect                       (Re)connect to the live session
  exit                          Quit

Common track names: drums, bass, lead, pad, keys, perc`)
}

func (s *shell) list() {
	names := s.reg.List()
	if len(names) == 0 {
		fmt.Println("No tracks generated yet.")
		return
	}
	fmt.Println("Generated tracks:")
	for _, name := range names {
		if content, ok := s.reg.Content(name); ok {
			fmt.Printf("  %-10s rev %d, %d notes, %.0f BPM %s\n",
				name, content.Revision, len(content.Notes), content.BPM, content.TimeSignature())
		}
	}
}

func (s *shell) status() {
	st := s.controller.Status()
	fmt.Printf("Session: %s", st.Session)
	if st.SessionID != "" {
		fmt.Printf(" (%s)", st.SessionID)
	}
	fmt.Println()
	for _, tr := range st.Tracks {
		idx := "-"
		if tr.TrackIndex >= 0 {
			idx = fmt.Sprintf("%d", tr.TrackIndex)
		}
		fmt.Printf("  %-10s rev %-3d %-12s track %s\n", tr.TrackName, tr.Revision, tr.State, idx)
	}
}

func (s *shell) connect() {
	if err := s.conn.Reconnect(); err != nil {
		fmt.Printf("Connect failed: %v\n", err)
		fmt.Println("Make sure the DAW is running with AbletonOSC enabled on the configured port.")
		return
	}
	fmt.Println("Connected to live session.")
}

func (s *shell) report(result *engine.Result, err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("✓ %s (rev %d)\n", result.Content.TrackName, result.Content.Revision)
	fmt.Printf("  MIDI file: %s\n", result.MIDIPath)
	if result.Description != "" {
		fmt.Printf("  Description: %s\n", result.Description)
	}
	if result.Sync != nil && result.Sync.Mode == live.SyncModeManual {
		fmt.Printf("  Live sync: manual fallback - import %s into the DAW by hand\n", result.Sync.MIDIPath)
	}
}

func (s *shell) load(name string, reprobe bool) {
	if name == "" {
		fmt.Println("Usage: load <track>")
		return
	}
	var result *live.SyncResult
	var err error
	if reprobe {
		result, err = s.controller.Reprobe(name)
	} else {
		result, err = s.controller.Sync(name)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	switch result.Mode {
	case live.SyncModeNoop:
		fmt.Printf("%s already in sync (track %d)\n", name, result.TrackIndex)
	case live.SyncModeAuto:
		fmt.Printf("✓ %s: %d notes uploaded to track %d\n", name, result.NotesSent, result.TrackIndex)
	case live.SyncModeManual:
		fmt.Printf("%s: manual fallback active (%s)\n", name, result.Message)
		fmt.Printf("  Import %s into a MIDI track named %q by hand.\n", result.MIDIPath, name)
	}
}

func (s *shell) transport(verb, rest string) {
	target := strings.TrimSpace(rest)
	if target == "" {
		target = live.TrackAll
	}

	var results []live.TransportResult
	var err error
	if verb == "play" {
		results, err = s.controller.Play(target)
	} else {
		results, err = s.controller.Stop(target)
	}
	if err != nil {
		if errors.Is(err, live.ErrNotConnected) {
			fmt.Println("Not connected to a live session - use `connect` first.")
			return
		}
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  %-10s %v\n", r.TrackName, r.Err)
		} else {
			fmt.Printf("  %-10s ok\n", r.TrackName)
		}
	}
}

// splitTrackPrompt parses "name: prompt" command arguments.
func splitTrackPrompt(rest string) (name, prompt string, ok bool) {
	name, prompt, found := strings.Cut(rest, ":")
	name = strings.TrimSpace(name)
	prompt = strings.TrimSpace(prompt)
	if !found || name == "" || prompt == "" {
		return "", "", false
	}
	return name, prompt, true
}
