package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/boardsight/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func seedHistory(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &store.Run{ID: id, Required: 3, Status: "running", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Runs().Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}
	if err := s.Runs().Finish(ctx, "run-a", "settled", "red,blue,green", "", base.Add(30*time.Second)); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	for _, game := range []string{"xo", "rubik", "xo"} {
		if err := s.Requests().Create(ctx, &store.Request{Game: game, Status: 200, Result: "-1"}); err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
	}
}

func TestHistoryHandler_ListRuns(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s)
	handler := NewHistoryHandler(s.Runs(), s.Requests())

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "newest first", target: "/api/runs", want: []string{"run-c", "run-b", "run-a"}},
		{name: "limited", target: "/api/runs?limit=2", want: []string{"run-c", "run-b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			var resp listRunsResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			var ids []string
			for _, r := range resp.Runs {
				ids = append(ids, r.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("runs = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("runs = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestHistoryHandler_GetRun(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s)
	handler := NewHistoryHandler(s.Runs(), s.Requests())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-a", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var run store.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if run.Status != "settled" || run.Result != "red,blue,green" || run.FinishedAt == nil {
		t.Errorf("run = %+v, want settled with result", run)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHistoryHandler_ListRequests(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s)
	handler := NewHistoryHandler(s.Runs(), s.Requests())

	tests := []struct {
		target string
		want   int
	}{
		{target: "/api/requests", want: 3},
		{target: "/api/requests?game=xo", want: 2},
		{target: "/api/requests?game=cards", want: 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		var resp listRequestsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: failed to decode response: %v", tt.target, err)
		}
		if resp.Requests == nil {
			t.Errorf("%s: requests must encode as an empty list, not null", tt.target)
		}
		if len(resp.Requests) != tt.want {
			t.Errorf("%s: got %d requests, want %d", tt.target, len(resp.Requests), tt.want)
		}
	}
}

func TestHistoryHandler_BadRequests(t *testing.T) {
	s := newTestStore(t)
	handler := NewHistoryHandler(s.Runs(), s.Requests())

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/runs?limit=-3", http.StatusBadRequest},
		{http.MethodGet, "/api/runs?limit=ten", http.StatusBadRequest},
		{http.MethodPost, "/api/runs", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.target, tt.want, rec.Code)
		}
	}
}
