// Package mcp exposes form sessions as an MCP server, so agent frontends
// can fill forms tool call by tool call.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/quillform/stepflow"
	"github.com/quillform/stepflow/internal/presentation/graph"
	stepregistry "github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/session"
)

// StepView is the unified tool output: where the session stands and what
// the current step wants filled in.
type StepView struct {
	Session  *domain.Snapshot `json:"session" jsonschema_description:"The session snapshot after the operation"`
	StepID   string           `json:"step_id" jsonschema_description:"The active step"`
	Fields   []forms.FieldDef `json:"fields,omitempty" jsonschema_description:"Fields of the active step"`
	Moved    bool             `json:"moved" jsonschema_description:"Whether the last operation changed the step"`
	Complete bool             `json:"complete" jsonschema_description:"Whether the whole form validates"`
}

// Server wraps a form definition and its sessions as an MCP server.
type Server struct {
	def       *forms.Definition
	firstStep string
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance.
func NewServer(def *forms.Definition, sessions *session.Manager) *Server {
	s := &Server{
		def:       def,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("stepflow-mcp", strings.TrimSpace(stepflow.Version)),
	}
	// New sessions start on the first registered step. Resolving it through
	// the registry picks up generated ids for steps declared without one.
	if first := stepregistry.Build(def).First(); first != nil {
		s.firstStep = first.ID
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	renderTool := mcp.NewTool("render_step",
		mcp.WithDescription("Show the session's current step and its fields. Creates the session if it does not exist."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[StepView](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRenderStep))

	navigateTool := mcp.NewTool("navigate",
		mcp.WithDescription("Move within the form: next, previous, or goto a step id."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("op", mcp.Required(), mcp.Description("One of: next, previous, goto")),
		mcp.WithString("step_id", mcp.Description("Target step id for goto")),
		mcp.WithOutputSchema[StepView](),
	)
	s.mcpServer.AddTool(navigateTool, mcp.NewStructuredToolHandler(s.handleNavigate))

	setFieldTool := mcp.NewTool("set_field",
		mcp.WithDescription("Store a field value. Radio/select fields with branch options also activate the matching branch."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Field name")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Field value")),
		mcp.WithOutputSchema[StepView](),
	)
	s.mcpServer.AddTool(setFieldTool, mcp.NewStructuredToolHandler(s.handleSetField))

	skipTool := mcp.NewTool("skip_step",
		mcp.WithDescription("Skip a step; its fields are cleared. Skipping the current step moves to the next available one."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("step_id", mcp.Required(), mcp.Description("Step to skip")),
		mcp.WithString("reason", mcp.Description("Why the step is skipped")),
		mcp.WithOutputSchema[StepView](),
	)
	s.mcpServer.AddTool(skipTool, mcp.NewStructuredToolHandler(s.handleSkip))

	undoTool := mcp.NewTool("undo_skip",
		mcp.WithDescription("Reverse a skip, when its entry permits undo. Cleared values are not restored."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("step_id", mcp.Required(), mcp.Description("Step to unskip")),
		mcp.WithOutputSchema[StepView](),
	)
	s.mcpServer.AddTool(undoTool, mcp.NewStructuredToolHandler(s.handleUndoSkip))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the form structure as a Mermaid flowchart."),
		mcp.WithString("session_id", mcp.Description("Overlay this session's progress (optional)")),
	), s.handleGetGraph)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("stepflow://definition", "Form Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.def)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal definition: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "stepflow://definition",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func (s *Server) handleRenderStep(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepView, error) {
	sessionID, _ := args["session_id"].(string)
	return s.withSession(ctx, sessionID, func(eng *stepflow.Engine) bool { return false })
}

func (s *Server) handleNavigate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepView, error) {
	sessionID, _ := args["session_id"].(string)
	op, _ := args["op"].(string)
	stepID, _ := args["step_id"].(string)

	return s.withSession(ctx, sessionID, func(eng *stepflow.Engine) bool {
		switch op {
		case "next":
			return eng.Next()
		case "previous":
			return eng.Previous()
		case "goto":
			return eng.GoToStepByID(stepID)
		default:
			return false
		}
	})
}

func (s *Server) handleSetField(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepView, error) {
	sessionID, _ := args["session_id"].(string)
	name, _ := args["name"].(string)
	value, _ := args["value"].(string)

	return s.withSession(ctx, sessionID, func(eng *stepflow.Engine) bool {
		eng.SetField(name, value)
		// Selecting a branching option through its field also routes the
		// branch, mirroring what a radio click does in a real frontend.
		for _, field := range s.def.FieldsOf(eng.CurrentStepID()) {
			if field.Name != name || len(field.Options) == 0 {
				continue
			}
			for _, opt := range field.Options {
				if opt.Value == value {
					eng.SelectOption(field.GroupName(), value)
					return true
				}
			}
		}
		return false
	})
}

func (s *Server) handleSkip(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepView, error) {
	sessionID, _ := args["session_id"].(string)
	stepID, _ := args["step_id"].(string)
	reason, _ := args["reason"].(string)

	return s.withSession(ctx, sessionID, func(eng *stepflow.Engine) bool {
		return eng.Skip(stepID, reason)
	})
}

func (s *Server) handleUndoSkip(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StepView, error) {
	sessionID, _ := args["session_id"].(string)
	stepID, _ := args["step_id"].(string)

	return s.withSession(ctx, sessionID, func(eng *stepflow.Engine) bool {
		return eng.UndoSkip(stepID)
	})
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var overlay *graph.Overlay
	if sessionID := request.GetString("session_id", ""); sessionID != "" {
		snap, err := s.sessions.Load(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load session failed: %v", err)), nil
		}
		overlay = &graph.Overlay{
			VisitedSteps: snap.Visited,
			CurrentStep:  snap.CurrentStepID,
		}
		for stepID := range snap.Skipped {
			overlay.SkippedSteps = append(overlay.SkippedSteps, stepID)
		}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(s.def, overlay)), nil
}

// withSession rehydrates an engine for the session (creating the session
// when missing), applies fn, persists the result and reports the view.
func (s *Server) withSession(ctx context.Context, sessionID string, fn func(*stepflow.Engine) bool) (StepView, error) {
	if sessionID == "" {
		return StepView{}, fmt.Errorf("session_id is required")
	}

	if _, err := s.sessions.LoadOrStart(ctx, sessionID, s.firstStep); err != nil {
		return StepView{}, fmt.Errorf("session init failed: %w", err)
	}

	var view StepView
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		snap, err := s.sessions.Store().Load(ctx, sessionID)
		if err != nil {
			return err
		}

		eng, err := stepflow.New(s.def)
		if err != nil {
			return err
		}
		defer eng.Destroy()

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

		moved := fn(eng)
		result := eng.Snapshot()
		if err := s.sessions.Store().Save(ctx, sessionID, result); err != nil {
			return err
		}

		view = StepView{
			Session:  result,
			StepID:   result.CurrentStepID,
			Fields:   s.def.FieldsOf(result.CurrentStepID),
			Moved:    moved,
			Complete: len(eng.ValidateForm()) == 0,
		}
		return nil
	})
	return view, err
}
