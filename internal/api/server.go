package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	servertiming "github.com/mitchellh/go-server-timing"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/jobs"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/predict"
)

// Server is the remote tool surface: a JSON-over-HTTP mapping of the
// orchestrator facade plus the prediction tools. examplesDir points at the
// bundled example data listed by /api/examples.
type Server struct {
	manager     *jobs.Manager
	builder     *predict.Builder
	examplesDir string
	logger      *slog.Logger
}

func NewServer(manager *jobs.Manager, builder *predict.Builder, examplesDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{manager: manager, builder: builder, examplesDir: examplesDir, logger: logger}
}

// Router builds the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return servertiming.Middleware(next, nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleSubmitJob)
			r.Get("/", s.handleListJobs)
			r.Get("/{jobID}", s.handleJobStatus)
			r.Get("/{jobID}/result", s.handleJobResult)
			r.Get("/{jobID}/log", s.handleJobLog)
			r.Delete("/{jobID}", s.handleCancelJob)
		})

		r.Route("/predict", func(r chi.Router) {
			r.Post("/structure", s.handlePredictStructure)
			r.Post("/structure/sync", s.handlePredictStructureSync)
			r.Post("/affinity", s.handlePredictAffinity)
			r.Post("/affinity/sync", s.handlePredictAffinitySync)
			r.Post("/batch", s.handlePredictBatch)
		})

		r.Route("/validate", func(r chi.Router) {
			r.Post("/sequence", s.handleValidateSequence)
			r.Post("/smiles", s.handleValidateSMILES)
		})

		r.Get("/examples", s.handleListExamples)
	})

	return r
}
