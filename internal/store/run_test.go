package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayusman/boardsight/internal/cups"
)

func TestRunRepository_CreateAndFinish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := repo.Create(ctx, &Run{ID: "run-1", Required: 3, Status: "running", StartedAt: started}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "running" || got.FinishedAt != nil {
		t.Errorf("unfinished run = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}

	finished := started.Add(8 * time.Second)
	if err := repo.Finish(ctx, "run-1", "settled", "red,blue,green", "", finished); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err = repo.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "settled" || got.Result != "red,blue,green" {
		t.Errorf("finished run = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
	}
}

func TestRunRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := repo.Finish(ctx, "missing", "failed", "", "boom", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish() error = %v, want ErrNotFound", err)
	}
}

func TestRunRepository_RejectsUnknownStatus(t *testing.T) {
	s := newTestStore(t)

	err := s.Runs().Create(context.Background(), &Run{ID: "x", Required: 1, Status: "paused", StartedAt: time.Now()})
	if err == nil {
		t.Error("expected constraint error for unknown status")
	}
}

func TestRunRepository_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	repo := s.Runs()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, Required: 2, Status: "running", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "all", limit: 0, want: []string{"c", "b", "a"}},
		{name: "limited", limit: 2, want: []string{"c", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := repo.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("List() returned %d runs, want %d", len(runs), len(tt.want))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("runs[%d].ID = %q, want %q", i, runs[i].ID, id)
				}
			}
		})
	}
}

func TestRunRecorder(t *testing.T) {
	s := newTestStore(t)
	rec := NewRunRecorder(s.Runs())
	ctx := context.Background()

	var _ cups.Recorder = rec

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	r := cups.Record{ID: "run-9", Required: 2, Status: cups.StatusRunning, StartedAt: started}
	if err := rec.RecordStart(ctx, r); err != nil {
		t.Fatalf("RecordStart() error = %v", err)
	}

	r.Status = cups.StatusFailed
	r.Error = "read frame: stream ended"
	r.FinishedAt = started.Add(time.Second)
	if err := rec.RecordFinish(ctx, r); err != nil {
		t.Fatalf("RecordFinish() error = %v", err)
	}

	got, err := s.Runs().GetByID(ctx, "run-9")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != "failed" || got.Error != r.Error || got.Required != 2 {
		t.Errorf("recorded run = %+v", got)
	}
}
