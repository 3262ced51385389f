package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/jobs"
	"github.com/jonathan/talent-pipeline/internal/server/middleware"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// maxRequestBody bounds the size of a job submission.
const maxRequestBody = 64 << 10

// SubmitJobRequest represents the request body for POST /jobs
type SubmitJobRequest struct {
	JobID       string           `json:"jobId,omitempty" validate:"omitempty,max=128,printascii"`
	Requirement string           `json:"requirement" validate:"required,max=8000"`
	Options     types.JobOptions `json:"options"`
}

// SubmitJobResponse represents the response for POST /jobs
type SubmitJobResponse struct {
	JobID  string          `json:"jobId"`
	Status types.JobStatus `json:"status"`
}

// JobStatusResponse represents the response for GET /jobs/{id}
type JobStatusResponse struct {
	JobID         string            `json:"jobId"`
	Status        types.JobStatus   `json:"status"`
	Stage         string            `json:"stage"`
	Progress      int               `json:"progress"`
	StatusMessage string            `json:"statusMessage"`
	Results       *types.JobResults `json:"results,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func newJobStatusResponse(job *types.Job) JobStatusResponse {
	return JobStatusResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Stage:         job.Stage,
		Progress:      job.Progress,
		StatusMessage: job.StatusMessage,
		Results:       job.Results,
		Error:         job.Error,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}

// handleSubmitJob queues a new pipeline run and returns without waiting for it.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.validator.Struct(req); err != nil {
		verr := extractValidationError(err)
		s.errorResponse(w, HTTPStatus(verr), verr.Error())
		return
	}

	job, err := s.queue.Submit(r.Context(), jobs.SubmitRequest{
		JobID:       req.JobID,
		Requirement: req.Requirement,
		Options:     req.Options,
	})
	if err != nil {
		s.logger.Warn("job submission rejected", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	fields := []zap.Field{zap.String("job_id", job.ID)}
	if subject, err := middleware.Subject(r); err == nil {
		fields = append(fields, zap.String("subject", subject))
	}
	s.logger.Info("job accepted", fields...)

	w.Header().Set("Location", "/jobs/"+job.ID)
	s.jsonResponse(w, http.StatusAccepted, SubmitJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// handleGetJob returns the current state of a job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.queue.Status(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), jobErrorMessage(id, err))
		return
	}
	s.jsonResponse(w, http.StatusOK, newJobStatusResponse(job))
}

// handleJobEvents streams job snapshots via SSE until the job is terminal or
// the client goes away. A snapshot is sent whenever the stored record changes.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	job, err := s.queue.Status(ctx, id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), jobErrorMessage(id, err))
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last *JobStatusResponse
	for {
		snapshot := newJobStatusResponse(job)
		if job.Status.IsTerminal() {
			stream.complete(snapshot)
			return
		}
		if last == nil || snapshot.Progress != last.Progress || snapshot.Stage != last.Stage || snapshot.StatusMessage != last.StatusMessage {
			if err := stream.progress(snapshot); err != nil {
				s.logger.Debug("event stream closed", zap.String("job_id", id), zap.Error(err))
				return
			}
			last = &snapshot
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err = s.queue.Status(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("event stream poll failed", zap.String("job_id", id), zap.Error(err))
				stream.fail(err.Error())
			}
			return
		}
	}
}

// handleGetCandidate returns a stored candidate document by id.
func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.candidates.GetCandidate(r.Context(), id)
	if err != nil {
		s.logger.Error("candidate lookup failed", zap.String("candidate_id", id), zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), "Database error: "+err.Error())
		return
	}
	if doc == nil {
		s.errorResponse(w, http.StatusNotFound, (&ErrNotFound{Kind: "candidate", ID: id}).Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func jobErrorMessage(id string, err error) string {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return (&ErrNotFound{Kind: "job", ID: id}).Error()
	}
	return err.Error()
}

// extractValidationError converts the first validator failure to ErrValidation.
func extractValidationError(err error) *ErrValidation {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		msg := fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return &ErrValidation{Field: fe.Namespace(), Message: msg}
	}
	return &ErrValidation{Field: "request", Message: "invalid request"}
}
