package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	servertiming "github.com/mitchellh/go-server-timing"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/jobs"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/predict"
)

type submitJobRequest struct {
	ScriptPath string    `json:"script_path"`
	Args       jobs.Args `json:"args"`
	JobName    string    `json:"job_name"`
	OutputDir  string    `json:"output_dir,omitempty"`
	Timeout    string    `json:"timeout,omitempty"` // Go duration string, e.g. "30m"
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID      string     `json:"job_id"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type logResponse struct {
	JobID      string   `json:"job_id"`
	Lines      []string `json:"lines"`
	TotalLines int      `json:"total_lines"`
}

type listEntry struct {
	JobID     string    `json:"job_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /api/jobs
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout: "+err.Error())
			return
		}
		timeout = d
	}
	s.submit(w, r, jobs.SubmitRequest{
		ScriptPath: req.ScriptPath,
		Args:       req.Args,
		Name:       req.JobName,
		OutputDir:  req.OutputDir,
		Timeout:    timeout,
	})
}

// GET /api/jobs?status=
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records := s.manager.List(r.URL.Query().Get("status"))
	out := make([]listEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, listEntry{
			JobID:     rec.ID,
			Name:      rec.Name,
			Status:    string(rec.Status),
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": out})
}

// GET /api/jobs/{jobID}
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.Status(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusPayload(rec))
}

// GET /api/jobs/{jobID}/result
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	env, err := s.manager.Result(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// GET /api/jobs/{jobID}/log?tail=n
func (s *Server) handleJobLog(w http.ResponseWriter, r *http.Request) {
	tail := 0
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "tail must be a non-negative integer")
			return
		}
		tail = n
	}
	id := chi.URLParam(r, "jobID")
	lines, total, err := s.manager.Log(id, tail)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logResponse{JobID: id, Lines: lines, TotalLines: total})
}

// DELETE /api/jobs/{jobID}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.Cancel(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": rec.ID,
		"status": string(rec.Status),
	})
}

// POST /api/predict/structure
func (s *Server) handlePredictStructure(w http.ResponseWriter, r *http.Request) {
	var req predict.StructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := s.builder.Structure(req)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.submit(w, r, sub)
}

// POST /api/predict/structure/sync
func (s *Server) handlePredictStructureSync(w http.ResponseWriter, r *http.Request) {
	var req predict.StructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := s.builder.Structure(req)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.submitAndWait(w, r, sub)
}

// POST /api/predict/affinity
func (s *Server) handlePredictAffinity(w http.ResponseWriter, r *http.Request) {
	var req predict.AffinityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := s.builder.Affinity(req)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.submit(w, r, sub)
}

// POST /api/predict/affinity/sync
func (s *Server) handlePredictAffinitySync(w http.ResponseWriter, r *http.Request) {
	var req predict.AffinityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := s.builder.Affinity(req)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.submitAndWait(w, r, sub)
}

// POST /api/predict/batch
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req predict.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sub, err := s.builder.Batch(req)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	s.submit(w, r, sub)
}

// POST /api/validate/sequence
func (s *Server) handleValidateSequence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sequence string `json:"sequence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, predict.ValidateSequence(req.Sequence))
}

// POST /api/validate/smiles
func (s *Server) handleValidateSMILES(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SMILES string `json:"smiles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, predict.ValidateSMILES(req.SMILES))
}

// GET /api/examples
func (s *Server) handleListExamples(w http.ResponseWriter, r *http.Request) {
	files, err := predict.ListExamples(s.examplesDir)
	if err != nil {
		s.logger.Error("list example data", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"examples_dir": s.examplesDir,
		"files":        files,
	})
}

// submit runs a submission through the manager and answers 202 with the
// job id. Submission time shows up in the Server-Timing header.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, req jobs.SubmitRequest) {
	var metric *servertiming.Metric
	if timing := servertiming.FromContext(r.Context()); timing != nil {
		metric = timing.NewMetric("submit").Start()
	}
	rec, err := s.manager.Submit(req)
	if metric != nil {
		metric.Stop()
	}
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: rec.ID, Status: string(rec.Status)})
}

// submitAndWait runs the job to completion inside the request, for the fast
// prediction paths. The client's context bounds the wait; on expiry the job
// keeps running and the job id comes back for polling.
func (s *Server) submitAndWait(w http.ResponseWriter, r *http.Request, req jobs.SubmitRequest) {
	var metric *servertiming.Metric
	if timing := servertiming.FromContext(r.Context()); timing != nil {
		metric = timing.NewMetric("predict").Start()
	}
	rec, err := s.manager.Submit(req)
	if err != nil {
		if metric != nil {
			metric.Stop()
		}
		s.writeManagerError(w, err)
		return
	}
	env, err := s.manager.Await(r.Context(), rec.ID)
	if metric != nil {
		metric.Stop()
	}
	if err != nil {
		cur, serr := s.manager.Status(rec.ID)
		if serr != nil {
			s.writeManagerError(w, serr)
			return
		}
		writeJSON(w, http.StatusAccepted, submitResponse{JobID: cur.ID, Status: string(cur.Status)})
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func statusPayload(rec jobs.Record) statusResponse {
	resp := statusResponse{
		JobID:     rec.ID,
		Name:      rec.Name,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
		Error:     rec.Error,
	}
	if !rec.StartedAt.IsZero() {
		t := rec.StartedAt
		resp.StartedAt = &t
	}
	if !rec.FinishedAt.IsZero() {
		t := rec.FinishedAt
		resp.FinishedAt = &t
	}
	return resp
}

// writeManagerError maps orchestration error kinds onto HTTP status codes.
func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobs.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
