package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, httpRequestsTotal)
	require.NotNil(t, submissionsTotal)
	require.NotNil(t, archiveOperationsTotal)
}

func TestObserveSubmission(t *testing.T) {
	Init()
	beforeEmpty := testutil.ToFloat64(submissionsTotal.WithLabelValues(OutcomeEmpty))
	beforePreview := testutil.ToFloat64(submissionsTotal.WithLabelValues(OutcomePreview))

	ObserveSubmission(OutcomeEmpty, 0)
	ObserveSubmission(OutcomePreview, 12)

	require.Equal(t, beforeEmpty+1, testutil.ToFloat64(submissionsTotal.WithLabelValues(OutcomeEmpty)))
	require.Equal(t, beforePreview+1, testutil.ToFloat64(submissionsTotal.WithLabelValues(OutcomePreview)))
	require.Equal(t, 1, testutil.CollectAndCount(submissionLines))
}

func TestObserveArchive(t *testing.T) {
	Init()
	beforeOK := testutil.ToFloat64(archiveOperationsTotal.WithLabelValues(StageBlob, "ok"))
	beforeErr := testutil.ToFloat64(archiveOperationsTotal.WithLabelValues(StageBlob, "error"))

	ObserveArchive(StageBlob, nil)
	ObserveArchive(StageBlob, errors.New("boom"))

	require.Equal(t, beforeOK+1, testutil.ToFloat64(archiveOperationsTotal.WithLabelValues(StageBlob, "ok")))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(archiveOperationsTotal.WithLabelValues(StageBlob, "error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveRateLimitDelay(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "plotter_rate_limit_delay_seconds")
}
