// Package plotter defines the core types shared across the submission pipeline.
package plotter

import (
	"errors"
	"time"

	"github.com/JakeFAU/plotter-web/internal/gcode"
)

// ErrNotFound is returned by stores when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// StatusSuccess is the only status the submission endpoint reports.
const StatusSuccess = "success"

// Submission is the archived record of one G-code upload.
type Submission struct {
	ID           string             `json:"id"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	ContentHash  string             `json:"content_hash"`
	BlobURI      string             `json:"blob_uri,omitempty"`
	LineCount    int                `json:"line_count"`
	CommandCount int                `json:"command_count"`
	Bounds       *gcode.BoundingBox `json:"bounds,omitempty"`
	Preview      string             `json:"preview"`
	RemoteAddr   string             `json:"remote_addr,omitempty"`
}

// SubmissionEvent is published after a submission has been archived.
type SubmissionEvent struct {
	Type         string    `json:"type"`
	SubmissionID string    `json:"submission_id"`
	ContentHash  string    `json:"content_hash"`
	BlobURI      string    `json:"blob_uri,omitempty"`
	LineCount    int       `json:"line_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// EventSubmissionCreated is the SubmissionEvent type emitted for new submissions.
const EventSubmissionCreated = "submission.created"
