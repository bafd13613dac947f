package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/plotter-web/internal/plotter"
)

// SubmissionStore provides an in-memory plotter.SubmissionStore.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]plotter.Submission
}

// NewSubmissionStore constructs a SubmissionStore.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]plotter.Submission),
	}
}

// CreateSubmission stores a new submission. IDs must be unique.
func (s *SubmissionStore) CreateSubmission(_ context.Context, sub plotter.Submission) error {
	if sub.ID == "" {
		return fmt.Errorf("submission id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; exists {
		return fmt.Errorf("submission %s already exists", sub.ID)
	}
	s.submissions[sub.ID] = cloneSubmission(sub)
	return nil
}

// GetSubmission fetches a submission by ID.
func (s *SubmissionStore) GetSubmission(_ context.Context, id string) (plotter.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return plotter.Submission{}, fmt.Errorf("get submission %s: %w", id, plotter.ErrNotFound)
	}
	return cloneSubmission(sub), nil
}

func cloneSubmission(sub plotter.Submission) plotter.Submission {
	if sub.Bounds != nil {
		box := *sub.Bounds
		sub.Bounds = &box
	}
	return sub
}
