package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillform/stepflow/pkg/adapters/memory"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/session"
)

func testDefinition() *forms.Definition {
	return &forms.Definition{
		Name: "checkout",
		Steps: []forms.StepDef{
			{ID: "contact", Fields: []forms.FieldDef{
				{Name: "email", Required: true},
			}},
			{ID: "payment", Fields: []forms.FieldDef{
				{Name: "method", Input: "radio", Options: []forms.OptionDef{
					{Value: "card", GoTo: "card-details"},
					{Value: "cash"},
				}},
			}},
			{ID: "card-details", ShowIf: "card-details"},
			{ID: "summary"},
		},
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	sessions := session.NewManager(memory.NewStore())
	return NewHandler(testDefinition(), sessions)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestServer_SessionLifecycle(t *testing.T) {
	handler := newTestHandler(t)

	w := postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "contact", snap.CurrentStepID)

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	req = httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusNoContent, w3.Code)

	req = httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	w4 := httptest.NewRecorder()
	handler.ServeHTTP(w4, req)
	assert.Equal(t, http.StatusNotFound, w4.Code)
}

func TestServer_NavigationBlockedByValidation(t *testing.T) {
	handler := newTestHandler(t)
	postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})

	// No email entered: next must be refused.
	w := postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Moved   bool            `json:"moved"`
		Session domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Moved)
	assert.Equal(t, "contact", resp.Session.CurrentStepID)

	postJSON(t, handler, "/sessions/s1/fields", map[string]any{
		"values": map[string]any{"email": "a@b.example"},
	})

	w = postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Moved)
	assert.Equal(t, "payment", resp.Session.CurrentStepID)
}

func TestServer_SelectAndBranch(t *testing.T) {
	handler := newTestHandler(t)
	postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})
	postJSON(t, handler, "/sessions/s1/fields", map[string]any{
		"values": map[string]any{"email": "a@b.example"},
	})
	postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})

	w := postJSON(t, handler, "/sessions/s1/select", map[string]string{
		"group": "method", "value": "card",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Selected bool            `json:"selected"`
		Session  domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Selected)
	assert.Equal(t, "card", resp.Session.ActiveConditions["card-details"])

	// Next from payment must now land on the activated branch target.
	w = postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})
	var nav struct {
		Moved   bool            `json:"moved"`
		Session domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nav))
	assert.True(t, nav.Moved)
	assert.Equal(t, "card-details", nav.Session.CurrentStepID)
}

func TestServer_SkipAndUnskip(t *testing.T) {
	handler := newTestHandler(t)
	postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})

	w := postJSON(t, handler, "/sessions/s1/skip", map[string]any{
		"step_id": "summary", "reason": "not needed",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Skipped bool            `json:"skipped"`
		Session domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Skipped)
	require.Contains(t, resp.Session.Skipped, "summary")
	assert.Equal(t, "not needed", resp.Session.Skipped["summary"].Reason)

	w = postJSON(t, handler, "/sessions/s1/unskip", map[string]string{"step_id": "summary"})
	var undo struct {
		Undone  bool            `json:"undone"`
		Session domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &undo))
	assert.True(t, undo.Undone)
	assert.NotContains(t, undo.Session.Skipped, "summary")
}

func TestServer_GeneratedStepIDs(t *testing.T) {
	// A first step declared without an id gets a generated one; sessions
	// must seed and navigate with that id, not an empty string.
	def := &forms.Definition{
		Name: "anon",
		Steps: []forms.StepDef{
			{Title: "Welcome"},
			{ID: "details"},
		},
	}
	handler := NewHandler(def, session.NewManager(memory.NewStore()))

	w := postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "step-0", snap.CurrentStepID)

	w = postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Moved   bool            `json:"moved"`
		Session domain.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Moved)
	assert.Equal(t, "details", resp.Session.CurrentStepID)
}

func TestServer_Graph(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
	assert.Contains(t, w.Body.String(), "card_details")
}

func TestServer_Metrics(t *testing.T) {
	handler := newTestHandler(t)
	postJSON(t, handler, "/sessions", map[string]string{"session_id": "s1"})
	postJSON(t, handler, "/sessions/s1/fields", map[string]any{
		"values": map[string]any{"email": "a@b.example"},
	})
	postJSON(t, handler, "/sessions/s1/navigate", navigateRequest{Op: "next"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stepflow_step_transitions_total")
}

// The embedded OpenAPI document must stay valid and cover every mounted
// session route.
func TestServer_OpenAPISpec(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{
		"/healthz",
		"/graph",
		"/sessions",
		"/sessions/{sessionID}",
		"/sessions/{sessionID}/navigate",
		"/sessions/{sessionID}/fields",
		"/sessions/{sessionID}/select",
		"/sessions/{sessionID}/skip",
		"/sessions/{sessionID}/unskip",
		"/sessions/{sessionID}/validate",
		"/sessions/{sessionID}/reset",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "spec missing path %s", path)
	}
}
