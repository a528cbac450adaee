package appforge

import (
	"context"
	"time"
)

// BuildRecord is a persisted build result for a session.
type BuildRecord struct {
	ID        string       `json:"id"`
	SessionID string       `json:"sessionId"`
	Result    *BuildResult `json:"result"`
	CreatedAt time.Time    `json:"createdAt"`
}

// SpecStore persists the current specification and build history of each session.
type SpecStore interface {
	// Specification operations. Saving replaces any previous specification.
	SaveSpec(ctx context.Context, sessionID string, spec *Specification) error
	LoadSpec(ctx context.Context, sessionID string) (*Specification, error)
	DeleteSpec(ctx context.Context, sessionID string) error

	// Build operations
	SaveBuild(ctx context.Context, sessionID string, result *BuildResult) (*BuildRecord, error)
	LatestBuild(ctx context.Context, sessionID string) (*BuildRecord, error)
}

// Exporter writes a finished html document somewhere durable and returns its location.
type Exporter interface {
	Export(ctx context.Context, name string, html []byte) (string, error)
}
