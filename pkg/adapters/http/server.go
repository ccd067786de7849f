// Package http serves a form engine over REST. Sessions are durable:
// every request rehydrates an engine from the session snapshot, applies
// the operation, and persists the resulting snapshot back through the
// session manager.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillform/stepflow"
	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/internal/metrics"
	"github.com/quillform/stepflow/internal/presentation/graph"
	stepregistry "github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/session"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Server exposes one form definition and its sessions.
type Server struct {
	def       *forms.Definition
	firstStep string
	sessions  *session.Manager
	logger    *slog.Logger
	collector *metrics.Collector
	registry  *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a form definition backed by a
// session manager.
func NewHandler(def *forms.Definition, sessions *session.Manager, opts ...Option) http.Handler {
	srv := &Server{
		def:      def,
		sessions: sessions,
		logger:   logging.NewNop(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.collector = metrics.NewCollector(srv.registry)

	// New sessions start on the first registered step. Resolving it through
	// the registry picks up generated ids for steps declared without one.
	if first := stepregistry.Build(def).First(); first != nil {
		srv.firstStep = first.ID
	}

	r := chi.NewRouter()

	r.Get("/healthz", srv.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	r.Get("/graph", srv.getGraph)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", srv.listSessions)
		r.Post("/", srv.createSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", srv.getSession)
			r.Delete("/", srv.deleteSession)
			r.Post("/navigate", srv.navigate)
			r.Post("/fields", srv.setFields)
			r.Post("/select", srv.selectOption)
			r.Post("/skip", srv.skip)
			r.Post("/unskip", srv.unskip)
			r.Post("/validate", srv.validateForm)
			r.Post("/reset", srv.resetForm)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Stepflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "form": s.def.Name})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		snap, err := s.sessions.Load(r.Context(), id)
		if err != nil {
			s.writeError(w, err, "load session for graph")
			return
		}
		overlay = &graph.Overlay{
			VisitedSteps: snap.Visited,
			CurrentStep:  snap.CurrentStepID,
		}
		for stepID := range snap.Skipped {
			overlay.SkippedSteps = append(overlay.SkippedSteps, stepID)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(s.def, overlay))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err, "list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	snap, err := s.sessions.LoadOrStart(r.Context(), body.SessionID, s.firstStep)
	if err != nil {
		s.writeError(w, err, "create session")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err, "load session")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err, "delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type navigateRequest struct {
	Op     string `json:"op"` // "next", "previous", "goto"
	StepID string `json:"step_id,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var body navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var moved bool
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		switch body.Op {
		case "next":
			moved = eng.Next()
		case "previous":
			moved = eng.Previous()
		case "goto":
			switch {
			case body.StepID != "":
				moved = eng.GoToStepByID(body.StepID)
			case body.Index != nil:
				moved = eng.GoToStep(*body.Index)
			default:
				return errBadRequest("goto requires step_id or index")
			}
		default:
			return errBadRequest(fmt.Sprintf("unknown op %q", body.Op))
		}
		return nil
	}, func(snap *domain.Snapshot) any {
		return map[string]any{"moved": moved, "session": snap}
	})
}

func (s *Server) setFields(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values map[string]any `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Values) == 0 {
		http.Error(w, "values are required", http.StatusBadRequest)
		return
	}

	s.withSession(w, r, func(eng *stepflow.Engine) error {
		for name, value := range body.Values {
			eng.SetField(name, value)
		}
		return nil
	}, nil)
}

func (s *Server) selectOption(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Group string `json:"group"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Group == "" {
		http.Error(w, "group and value are required", http.StatusBadRequest)
		return
	}

	var selected bool
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		selected = eng.SelectOption(body.Group, body.Value)
		return nil
	}, func(snap *domain.Snapshot) any {
		return map[string]any{"selected": selected, "session": snap}
	})
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StepID  string `json:"step_id"`
		Reason  string `json:"reason,omitempty"`
		Section bool   `json:"section,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StepID == "" {
		http.Error(w, "step_id is required", http.StatusBadRequest)
		return
	}

	var skipped bool
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		if body.Section {
			skipped = eng.SkipSection(body.StepID, body.Reason)
		} else {
			skipped = eng.Skip(body.StepID, body.Reason)
		}
		return nil
	}, func(snap *domain.Snapshot) any {
		return map[string]any{"skipped": skipped, "session": snap}
	})
}

func (s *Server) unskip(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StepID string `json:"step_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.StepID == "" {
		http.Error(w, "step_id is required", http.StatusBadRequest)
		return
	}

	var undone bool
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		undone = eng.UndoSkip(body.StepID)
		return nil
	}, func(snap *domain.Snapshot) any {
		return map[string]any{"undone": undone, "session": snap}
	})
}

func (s *Server) validateForm(w http.ResponseWriter, r *http.Request) {
	var errs []domain.FieldError
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		errs = eng.ValidateForm()
		return nil
	}, func(snap *domain.Snapshot) any {
		return map[string]any{"valid": len(errs) == 0, "errors": errs}
	})
}

func (s *Server) resetForm(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(eng *stepflow.Engine) error {
		eng.ResetForm()
		return nil
	}, nil)
}

type badRequestError string

func errBadRequest(msg string) error { return badRequestError(msg) }
func (e badRequestError) Error() string { return string(e) }

// withSession rehydrates an engine from the session snapshot, runs fn, and
// persists the resulting snapshot. The whole cycle happens under the
// session lock, so concurrent requests on one session serialize. respond
// builds the success body from the saved snapshot; nil means "return the
// snapshot as-is".
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*stepflow.Engine) error, respond func(*domain.Snapshot) any) {
	sessionID := chi.URLParam(r, "sessionID")

	var result *domain.Snapshot
	err := s.sessions.WithLock(r.Context(), sessionID, func(ctx context.Context) error {
		snap, err := s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		eng, err := stepflow.New(s.def, stepflow.WithLogger(s.logger))
		if err != nil {
			return err
		}
		defer eng.Destroy()

		detach := s.collector.Attach(eng.Events())
		defer detach()

		if err := eng.Init(); err != nil {
			return err
		}
		// A just-created session may carry no step yet; Init already
		// positioned the engine on the first one.
		if snap.CurrentStepID != "" {
			if err := eng.Restore(snap); err != nil {
				return err
			}
		}
		if err := fn(eng); err != nil {
			return err
		}

		result = eng.Snapshot()
		return s.sessions.Store().Save(ctx, sessionID, result)
	})
	if err != nil {
		s.writeError(w, err, "session operation")
		return
	}

	if respond != nil {
		writeJSON(w, http.StatusOK, respond(result))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeError(w http.ResponseWriter, err error, op string) {
	var badReq badRequestError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.As(err, &badReq):
		http.Error(w, badReq.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "op", op, "err", err)
		http.Error(w, fmt.Sprintf("%s: %v", op, err), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}
