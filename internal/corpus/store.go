package corpus

import (
	"context"
	"time"
)

// Report kinds for per-run output documents.
const (
	ReportDetection    = "detection"
	ReportRequirements = "requirements"
	ReportPropagation  = "propagation"
	ReportAudit        = "audit"
)

// Report wraps one self-contained output document for a run. Every
// report carries the cycle id and timestamp so downstream consumers
// can correlate documents without opening them.
type Report struct {
	Kind      string    `json:"kind"`
	CycleID   string    `json:"cycle_id"`
	CreatedAt time.Time `json:"created_at"`
	Document  any       `json:"document"`
}

// Store persists whole-document corpus snapshots and per-run reports.
// Load reads the full corpus once; Save rewrites it atomically. There
// are no partial or streaming writes.
type Store interface {
	Load(ctx context.Context) (*Corpus, error)
	Save(ctx context.Context, c *Corpus) error
	SaveReport(ctx context.Context, r Report) error
	Close() error
}
