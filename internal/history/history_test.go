package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/regolith-ai/regolith/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGetSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.UserID != "anonymous" {
		t.Errorf("UserID = %q, want anonymous", sess.UserID)
	}
	if sess.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession(missing) err = %v, want ErrSessionNotFound", err)
	}
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sess, err := store.EnsureSession(ctx, "chat-42")
		if err != nil {
			t.Fatalf("EnsureSession: %v", err)
		}
		if sess.ID != "chat-42" {
			t.Errorf("ID = %q, want chat-42", sess.ID)
		}
	}
	n, err := store.CountSessions(ctx)
	if err != nil {
		t.Fatalf("CountSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("CountSessions = %d, want 1", n)
	}
}

func TestRecordAndList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	first := &Record{
		SessionID:      sess.ID,
		Query:          "explan basiks of imprct cratrring",
		CorrectedQuery: "explain basics of impact cratering",
		Intent:         "retrieve",
		References:     []string{"impact cratering"},
		Interpretation: "parsed",
		Strategy:       "reference",
		Confidence:     0.83,
		Reconciliation: "reconciled",
		DocIDs:         []string{"c-2", "c-9"},
	}
	second := &Record{
		SessionID:      sess.ID,
		Query:          "tell me a love story",
		CorrectedQuery: "tell me a love story",
		Intent:         "unknown",
		Interpretation: "default",
		Strategy:       "semantic",
		Reconciliation: "fallback",
	}
	for _, rec := range []*Record{first, second} {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if rec.ID == "" {
			t.Error("Record did not assign an id")
		}
	}

	records, err := store.ListRecords(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != first.ID || records[1].ID != second.ID {
		t.Errorf("records out of order: %s, %s", records[0].ID, records[1].ID)
	}
	if got := records[0].DocIDs; len(got) != 2 || got[1] != "c-9" {
		t.Errorf("DocIDs = %v", got)
	}
	if records[0].Confidence != 0.83 {
		t.Errorf("Confidence = %v, want 0.83", records[0].Confidence)
	}
	if records[1].References == nil || len(records[1].References) != 0 {
		t.Errorf("References = %#v, want empty slice", records[1].References)
	}
}

func TestRecordUnknownSession(t *testing.T) {
	store := setupStore(t)
	err := store.Record(context.Background(), &Record{
		SessionID: "nope", Intent: "unknown", Interpretation: "default",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestRecordsRoute(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	sess, _ := store.CreateSession(ctx, "")
	if err := store.Record(ctx, &Record{
		SessionID: sess.ID, Query: "q", CorrectedQuery: "q", Intent: "retrieve",
		Interpretation: "parsed", Strategy: "lexical", Reconciliation: "fallback",
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sess.ID+"/records", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Strategy != "lexical" {
		t.Errorf("unexpected records: %+v", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown/records", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateSessionRoute(t *testing.T) {
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/", strings.NewReader(`{"user_id":"bob"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var sess Session
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.UserID != "bob" {
		t.Errorf("UserID = %q, want bob", sess.UserID)
	}
}
