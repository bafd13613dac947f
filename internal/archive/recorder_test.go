package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/plotter-web/internal/gcode"
	"github.com/JakeFAU/plotter-web/internal/hash/sha256"
	"github.com/JakeFAU/plotter-web/internal/plotter"
	pubmemory "github.com/JakeFAU/plotter-web/internal/publisher/memory"
	"github.com/JakeFAU/plotter-web/internal/storage/memory"
)

type fakeIDGen struct {
	id  string
	err error
}

func (f fakeIDGen) NewID() (string, error) { return f.id, f.err }

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

const program = "G21\nG90\nG0 Z5\nG1 X10 Y0 F800\nG1 X10 Y10\nG0 Z0\nM2"

var submittedAt = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

type fixture struct {
	recorder *Recorder
	blobs    *memory.BlobStore
	store    *memory.SubmissionStore
	pub      *pubmemory.Publisher
}

func newFixture(t *testing.T, cfg Config, logger *zap.Logger) fixture {
	t.Helper()
	f := fixture{
		blobs: memory.NewBlobStore(),
		store: memory.NewSubmissionStore(),
		pub:   pubmemory.New(),
	}
	f.recorder = New(
		fakeIDGen{id: "sub-1"},
		fakeClock{now: submittedAt},
		sha256.New(),
		f.blobs,
		f.store,
		f.pub,
		cfg,
		logger,
	)
	return f
}

func summarize(src string) gcode.Summary {
	return gcode.NewParser(gcode.DefaultPenUpZ).Parse(src).Summarize()
}

func TestRecordPersistsBlobMetadataAndEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{BlobPrefix: "/jobs/", Topic: "submissions"}, nil)

	sub, err := f.recorder.Record(context.Background(), program, summarize(program), "192.0.2.10")
	require.NoError(t, err)

	require.Equal(t, "sub-1", sub.ID)
	require.Equal(t, submittedAt, sub.SubmittedAt)
	require.Equal(t, "memory://jobs/2024/03/09/sub-1.gcode", sub.BlobURI)
	require.Len(t, sub.ContentHash, 64)
	require.Equal(t, 7, sub.LineCount)
	require.Equal(t, 5, sub.CommandCount)
	require.Equal(t, gcode.Preview(program), sub.Preview)
	require.Equal(t, "192.0.2.10", sub.RemoteAddr)
	require.NotNil(t, sub.Bounds)

	raw, ok := f.blobs.Object("jobs/2024/03/09/sub-1.gcode")
	require.True(t, ok)
	require.Equal(t, program, string(raw))

	stored, err := f.recorder.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, sub, stored)

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "submissions", msgs[0].Topic)
	event, ok := msgs[0].Payload.(plotter.SubmissionEvent)
	require.True(t, ok)
	require.Equal(t, plotter.EventSubmissionCreated, event.Type)
	require.Equal(t, "sub-1", event.SubmissionID)
	require.Equal(t, sub.BlobURI, event.BlobURI)
}

func TestRecordWithoutPrefixOrTopic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, nil)

	sub, err := f.recorder.Record(context.Background(), program, summarize(program), "")
	require.NoError(t, err)
	require.Equal(t, "memory://2024/03/09/sub-1.gcode", sub.BlobURI)
	require.Empty(t, f.pub.Messages())
}

func TestRecordWithoutBlobStore(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	rec := New(fakeIDGen{id: "sub-2"}, fakeClock{now: submittedAt}, sha256.New(), nil, store, nil, Config{Topic: "t"}, nil)

	sub, err := rec.Record(context.Background(), "G28", summarize("G28"), "")
	require.NoError(t, err)
	require.Empty(t, sub.BlobURI)

	_, err = store.GetSubmission(context.Background(), "sub-2")
	require.NoError(t, err)
}

func TestRecordBlobFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	store := memory.NewSubmissionStore()
	rec := New(fakeIDGen{id: "sub-3"}, fakeClock{now: submittedAt}, sha256.New(), failingBlobStore{}, store, nil, Config{}, nil)

	_, err := rec.Record(context.Background(), program, summarize(program), "")
	require.ErrorContains(t, err, "put object")

	_, err = store.GetSubmission(context.Background(), "sub-3")
	require.ErrorIs(t, err, plotter.ErrNotFound)
}

func TestRecordIDFailure(t *testing.T) {
	t.Parallel()

	rec := New(fakeIDGen{err: errors.New("entropy exhausted")}, fakeClock{}, sha256.New(), nil, memory.NewSubmissionStore(), nil, Config{}, nil)

	_, err := rec.Record(context.Background(), program, summarize(program), "")
	require.ErrorContains(t, err, "generate submission id")
}

func TestRecordDuplicateIDFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, nil)
	_, err := f.recorder.Record(context.Background(), program, summarize(program), "")
	require.NoError(t, err)

	_, err = f.recorder.Record(context.Background(), program, summarize(program), "")
	require.ErrorContains(t, err, "create submission")
}

func TestRecordPublishFailureIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	f := newFixture(t, Config{Topic: "submissions"}, zap.New(core))
	f.pub.FailWith(errors.New("broker down"))

	sub, err := f.recorder.Record(context.Background(), program, summarize(program), "")
	require.NoError(t, err)
	require.Equal(t, "sub-1", sub.ID)

	entries := logs.FilterMessage("submission event publish failed").All()
	require.Len(t, entries, 1)
}
