// Package archive records accepted G-code submissions: the raw program goes to a
// blob store, its metadata to a submission store, and an event to a publisher.
package archive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/plotter-web/internal/gcode"
	"github.com/JakeFAU/plotter-web/internal/metrics"
	"github.com/JakeFAU/plotter-web/internal/plotter"
)

// Config controls Recorder behavior.
type Config struct {
	BlobPrefix  string
	ContentType string
	Topic       string
}

// Recorder persists submissions. Blob and publisher are optional.
type Recorder struct {
	ids       plotter.IDGenerator
	clock     plotter.Clock
	hasher    plotter.Hasher
	blobStore plotter.BlobStore
	store     plotter.SubmissionStore
	publisher plotter.Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Recorder.
func New(
	ids plotter.IDGenerator,
	clock plotter.Clock,
	hasher plotter.Hasher,
	blobStore plotter.BlobStore,
	store plotter.SubmissionStore,
	publisher plotter.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Recorder {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/x-gcode; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		ids:       ids,
		clock:     clock,
		hasher:    hasher,
		blobStore: blobStore,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Record archives one submission and returns the stored record.
// A publish failure is logged but does not fail the call since the submission is already stored.
func (r *Recorder) Record(ctx context.Context, program string, summary gcode.Summary, remoteAddr string) (plotter.Submission, error) {
	id, err := r.ids.NewID()
	if err != nil {
		return plotter.Submission{}, fmt.Errorf("generate submission id: %w", err)
	}
	data := []byte(program)
	hash, err := r.hasher.Hash(data)
	if err != nil {
		return plotter.Submission{}, fmt.Errorf("hash program: %w", err)
	}
	now := r.clock.Now()

	sub := plotter.Submission{
		ID:           id,
		SubmittedAt:  now,
		ContentHash:  hash,
		LineCount:    summary.Lines,
		CommandCount: summary.Commands,
		Bounds:       summary.Bounds,
		Preview:      gcode.Preview(program),
		RemoteAddr:   remoteAddr,
	}

	if r.blobStore != nil {
		uri, err := r.blobStore.PutObject(ctx, r.blobPath(sub), r.cfg.ContentType, data)
		metrics.ObserveArchive(metrics.StageBlob, err)
		if err != nil {
			return plotter.Submission{}, fmt.Errorf("put object: %w", err)
		}
		sub.BlobURI = uri
	}

	err = r.store.CreateSubmission(ctx, sub)
	metrics.ObserveArchive(metrics.StageStore, err)
	if err != nil {
		return plotter.Submission{}, fmt.Errorf("create submission: %w", err)
	}

	if err := r.publish(ctx, sub); err != nil {
		r.logger.Warn("submission event publish failed", zap.String("submission_id", sub.ID), zap.Error(err))
	}

	r.logger.Info("submission archived",
		zap.String("submission_id", sub.ID),
		zap.String("blob_uri", sub.BlobURI),
		zap.String("hash", hash),
		zap.Int("lines", sub.LineCount),
	)
	return sub, nil
}

// Get returns a previously archived submission.
func (r *Recorder) Get(ctx context.Context, id string) (plotter.Submission, error) {
	return r.store.GetSubmission(ctx, id)
}

func (r *Recorder) publish(ctx context.Context, sub plotter.Submission) error {
	if r.cfg.Topic == "" || r.publisher == nil {
		return nil
	}
	event := plotter.SubmissionEvent{
		Type:         plotter.EventSubmissionCreated,
		SubmissionID: sub.ID,
		ContentHash:  sub.ContentHash,
		BlobURI:      sub.BlobURI,
		LineCount:    sub.LineCount,
		SubmittedAt:  sub.SubmittedAt,
	}
	_, err := r.publisher.Publish(ctx, r.cfg.Topic, event)
	metrics.ObserveArchive(metrics.StagePublish, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// blobPath lays objects out as <prefix>/YYYY/MM/DD/<id>.gcode.
func (r *Recorder) blobPath(sub plotter.Submission) string {
	day := sub.SubmittedAt.UTC().Format("2006/01/02")
	prefix := strings.Trim(r.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.gcode", day, sub.ID)
	}
	return fmt.Sprintf("%s/%s/%s.gcode", prefix, day, sub.ID)
}
