package plotter

import (
	"context"
	"time"
)

// SubmissionStore persists submission metadata.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes submission events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces submission IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
