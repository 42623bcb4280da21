// Package logging provides leveled logging and run tracing for driftline.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A RunLogger for structured JSONL run traces (<corpus>/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for full content logging.
// At this level, per-adjustment evidence text is included.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RunLogger writes typed run events to a JSONL trace file, one event
// per line: cycle boundaries, per-stage summaries, and every applied
// rule adjustment including clips. It is safe for concurrent use. A
// nil RunLogger is safe to use; all methods are no-ops on nil receiver.
type RunLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewRunLogger creates a run logger writing to dir/trace.jsonl.
// At "info" level (the default), returns nil — no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewRunLogger(dir string, level string) *RunLogger {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "trace.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &RunLogger{file: f}
}

// cycleStartEvent marks the start of a full analysis cycle.
type cycleStartEvent struct {
	Event      string `json:"event"`
	Time       string `json:"time"`
	CycleID    string `json:"cycle_id"`
	Models     int    `json:"models"`
	Narratives int    `json:"narratives"`
	Collisions int    `json:"collisions"`
}

// cycleCompleteEvent summarizes a finished cycle.
type cycleCompleteEvent struct {
	Event        string `json:"event"`
	Time         string `json:"time"`
	CycleID      string `json:"cycle_id"`
	Tensions     int    `json:"tensions"`
	Requirements int    `json:"requirements"`
	Changes      int    `json:"changes"`
	Violations   int    `json:"violations"`
}

// detectionEvent summarizes one detection pass.
type detectionEvent struct {
	Event    string `json:"event"`
	Time     string `json:"time"`
	CycleID  string `json:"cycle_id"`
	Tensions int    `json:"tensions"`
	Status   string `json:"status"`
}

// requirementsEvent summarizes one requirement generation pass.
type requirementsEvent struct {
	Event        string `json:"event"`
	Time         string `json:"time"`
	CycleID      string `json:"cycle_id"`
	Tensions     int    `json:"tensions"`
	Requirements int    `json:"requirements"`
}

// auditEvent summarizes one bounds audit.
type auditEvent struct {
	Event      string `json:"event"`
	Time       string `json:"time"`
	CycleID    string `json:"cycle_id"`
	Entities   int    `json:"entities"`
	Violations int    `json:"violations"`
}

// adjustmentEvent records one applied rule delta, clipped or not.
type adjustmentEvent struct {
	Event     string  `json:"event"`
	Time      string  `json:"time"`
	CycleID   string  `json:"cycle_id"`
	Iteration int     `json:"iteration"`
	Rule      string  `json:"rule"`
	Entity    string  `json:"entity"`
	Axis      string  `json:"axis"`
	Delta     float64 `json:"delta"`
	Clipped   bool    `json:"clipped,omitempty"`
}

// CycleStart records the corpus shape at the start of a cycle.
func (rl *RunLogger) CycleStart(cycleID string, models, narratives, collisions int) {
	rl.write(cycleStartEvent{
		Event: "cycle_start", Time: eventTime(), CycleID: cycleID,
		Models: models, Narratives: narratives, Collisions: collisions,
	})
}

// CycleComplete records the document totals of a finished cycle.
func (rl *RunLogger) CycleComplete(cycleID string, tensions, requirements, changes, violations int) {
	rl.write(cycleCompleteEvent{
		Event: "cycle_complete", Time: eventTime(), CycleID: cycleID,
		Tensions: tensions, Requirements: requirements,
		Changes: changes, Violations: violations,
	})
}

// Detection records a detection pass summary.
func (rl *RunLogger) Detection(cycleID string, tensions int, status string) {
	rl.write(detectionEvent{
		Event: "detect", Time: eventTime(), CycleID: cycleID,
		Tensions: tensions, Status: status,
	})
}

// Requirements records a requirement generation summary.
func (rl *RunLogger) Requirements(cycleID string, tensions, requirements int) {
	rl.write(requirementsEvent{
		Event: "requirements", Time: eventTime(), CycleID: cycleID,
		Tensions: tensions, Requirements: requirements,
	})
}

// Audit records a bounds audit summary.
func (rl *RunLogger) Audit(cycleID string, entities, violations int) {
	rl.write(auditEvent{
		Event: "audit", Time: eventTime(), CycleID: cycleID,
		Entities: entities, Violations: violations,
	})
}

// Adjustment records one applied rule delta. A fully clipped delta
// arrives as delta 0 with clipped true.
func (rl *RunLogger) Adjustment(cycleID string, iteration int, rule, entity, axis string, delta float64, clipped bool) {
	rl.write(adjustmentEvent{
		Event: "adjustment", Time: eventTime(), CycleID: cycleID,
		Iteration: iteration, Rule: rule, Entity: entity, Axis: axis,
		Delta: delta, Clipped: clipped,
	})
}

func eventTime() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// write appends one event as a JSONL line. Safe to call on nil receiver.
func (rl *RunLogger) write(event any) {
	if rl == nil || rl.file == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = rl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (rl *RunLogger) Close() {
	if rl == nil || rl.file == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.file.Close()
	rl.file = nil
}
