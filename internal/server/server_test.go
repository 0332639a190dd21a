package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quietfire/constellation/internal/engine"
	"github.com/quietfire/constellation/internal/llm"
	"github.com/quietfire/constellation/internal/store"
)

func testServer(t *testing.T, client llm.Client) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var eng *engine.Engine
	if client != nil {
		eng = engine.New(db, client)
	}
	return New(db, eng, "test"), db
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		DB      bool   `json:"db"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "ok" || body.Version != "test" || !body.DB {
		t.Errorf("body = %+v", body)
	}
}

func TestHealthReportsBudget(t *testing.T) {
	srv, _ := testServer(t, &llm.MockClient{})
	srv.engine.SetGate(engine.NewGate(7, 0))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	var body struct {
		BudgetRemaining *int `json:"budget_remaining"`
	}
	decodeBody(t, rec, &body)
	if body.BudgetRemaining == nil || *body.BudgetRemaining != 7 {
		t.Errorf("budget_remaining = %v, want 7", body.BudgetRemaining)
	}
}
