package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/notegraph/backend/internal/server/middleware"
	"github.com/notegraph/backend/pkg/common"
	"github.com/notegraph/backend/pkg/service"
	"github.com/notegraph/backend/pkg/store"
	"github.com/notegraph/backend/pkg/store/memory"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i any) error {
	return v.validator.Struct(i)
}

func newTestApp(t *testing.T) *middleware.App {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	nodes := []common.Node{
		{ID: "alice", Label: "Alice", Type: "PERSON"},
		{ID: "acme", Label: "Acme Corp", Type: "ORGANIZATION"},
	}
	for _, n := range nodes {
		if _, err := s.CreateNode(ctx, n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	if _, err := s.CreateEdge(ctx, common.Edge{
		ID: "e1", SourceNodeID: "alice", TargetNodeID: "acme", Type: "WORKS_AT", Weight: 1,
	}); err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}

	return &middleware.App{
		Service: service.NewGraphService(service.NewGraphServiceParams{Store: s}),
	}
}

func request(t *testing.T, app *middleware.App, handler echo.HandlerFunc, method, target string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}

	if err := handler(&middleware.AppContext{Context: c, App: app}); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestSearchNodesHandler(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, SearchNodesHandler, http.MethodGet, "/api/nodes/search?q=acme", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Message string        `json:"message"`
		Nodes   []common.Node `json:"nodes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Nodes) != 1 || body.Nodes[0].ID != "acme" {
		t.Fatalf("nodes = %+v", body.Nodes)
	}
}

func TestFindConnectionsHandler(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, FindConnectionsHandler, http.MethodGet,
		"/api/connections?source=Alice&target=Acme+Corp", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Paths []common.Path `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Paths) != 1 || body.Paths[0].Length != 1 {
		t.Fatalf("paths = %+v", body.Paths)
	}
}

func TestFindConnectionsHandlerValidation(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, FindConnectionsHandler, http.MethodGet, "/api/connections?source=Alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFindConnectionsHandlerUnknownLabel(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, FindConnectionsHandler, http.MethodGet,
		"/api/connections?source=Alice&target=Nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetNodeContextHandler(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, GetNodeContextHandler, http.MethodGet,
		"/api/nodes/Alice/context", map[string]string{"label": "Alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Subgraph common.Subgraph `json:"subgraph"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Subgraph.CentralNodeID != "alice" || len(body.Subgraph.Nodes) != 2 {
		t.Fatalf("subgraph = %+v", body.Subgraph)
	}
}

func TestGetGraphHandler(t *testing.T) {
	app := newTestApp(t)
	rec := request(t, app, GetGraphHandler, http.MethodGet, "/api/graph", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Graph common.Subgraph `json:"graph"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Graph.Nodes) != 2 || len(body.Graph.Edges) != 1 {
		t.Fatalf("graph = %+v", body.Graph)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.NotFoundf("no node labeled %q", "x"), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", store.ErrUnknownEndpoint), http.StatusConflict},
		{fmt.Errorf("wrap: %w", store.ErrIntegrity), http.StatusConflict},
		{fmt.Errorf("wrap: %w", store.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Fatalf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
