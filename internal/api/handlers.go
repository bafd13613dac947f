package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/plotter-web/internal/gcode"
	"github.com/JakeFAU/plotter-web/internal/metrics"
	"github.com/JakeFAU/plotter-web/internal/plotter"
	"github.com/JakeFAU/plotter-web/internal/policy/ratelimit"
)

const (
	jobSentMessage = "Job sent to plotter"
	maxBodyBytes   = 32 << 20
)

type sendJobRequest struct {
	GCode string `json:"gcode"`
}

type sendJobResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Preview string `json:"preview"`
}

type analyzeResponse struct {
	Lines    int                `json:"lines"`
	Commands []gcode.Command    `json:"commands"`
	Bounds   *gcode.BoundingBox `json:"bounds"`
	Stats    gcode.Summary      `json:"stats"`
}

// sendJob acknowledges a job with a preview of its first lines. Nothing is sent
// to a device; when an archive is configured the program is recorded and its ID
// returned in the X-Job-ID header.
func (s *Server) sendJob(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGCode(w, r)
	if !ok {
		metrics.ObserveSubmission(metrics.OutcomeInvalid, 0)
		return
	}

	preview := gcode.Preview(req.GCode)
	if req.GCode == "" {
		metrics.ObserveSubmission(metrics.OutcomeEmpty, 0)
	} else {
		metrics.ObserveSubmission(metrics.OutcomePreview, gcode.LineCount(req.GCode))
		s.record(w, r, req.GCode)
	}

	writeJSON(w, http.StatusOK, sendJobResponse{
		Status:  plotter.StatusSuccess,
		Message: jobSentMessage,
		Preview: preview,
	})
}

// record archives the program. Failures are logged and never change the response.
func (s *Server) record(w http.ResponseWriter, r *http.Request, program string) {
	if s.archive == nil {
		return
	}
	summary := s.parser.Parse(program).Summarize()
	sub, err := s.archive.Record(r.Context(), program, summary, ratelimit.ClientKey(r, s.cfg.RateLimit.TrustForwarded))
	if err != nil {
		s.logger.Error("archive submission failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		return
	}
	w.Header().Set("X-Job-ID", sub.ID)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeGCode(w, r)
	if !ok {
		return
	}
	if req.GCode == "" {
		writeError(w, http.StatusBadRequest, "gcode is required")
		return
	}
	prog := s.parser.Parse(req.GCode)
	summary := prog.Summarize()
	commands := prog.Commands
	if commands == nil {
		commands = []gcode.Command{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Lines:    prog.Lines,
		Commands: commands,
		Bounds:   summary.Bounds,
		Stats:    summary,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	sub, err := s.archive.Get(r.Context(), jobID)
	if errors.Is(err, plotter.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("load submission failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// decodeGCode reads the shared {"gcode": "..."} body, writing a 400 on failure.
func (s *Server) decodeGCode(w http.ResponseWriter, r *http.Request) (sendJobRequest, bool) {
	var req sendJobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(&req)
	if err == nil {
		err = expectEOF(dec)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	return req, true
}

// expectEOF rejects anything but whitespace after the first JSON value.
func expectEOF(dec *json.Decoder) error {
	_, err := dec.Token()
	switch {
	case errors.Is(err, io.EOF):
		return nil
	case err != nil:
		return err
	default:
		return errors.New("unexpected data after JSON body")
	}
}
