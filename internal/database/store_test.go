package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func TestInitializeIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Initialize(ctx); err != nil {
			t.Fatalf("Initialize call %d failed: %v", i+1, err)
		}
	}
}

func TestInitializeSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	s := NewStore(db, nil)
	if err := s.PutCorrelation(ctx, "$e1", "$r1"); err != nil {
		t.Fatalf("PutCorrelation failed: %v", err)
	}
	CloseDB(db)

	db, err = NewDB(path)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer CloseDB(db)
	s = NewStore(db, nil)

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize on existing database failed: %v", err)
	}
	rec, err := s.GetCorrelation(ctx, "$e1")
	if err != nil {
		t.Fatalf("GetCorrelation failed: %v", err)
	}
	if rec == nil || rec.ResponseID != "$r1" {
		t.Fatalf("expected persisted correlation $r1, got %+v", rec)
	}
}

func TestLazyInitialization(t *testing.T) {
	ctx := context.Background()

	t.Run("get before initialize", func(t *testing.T) {
		s := newTestStore(t)
		rec, err := s.GetCorrelation(ctx, "unknown")
		if err != nil {
			t.Fatalf("GetCorrelation without Initialize failed: %v", err)
		}
		if rec != nil {
			t.Errorf("expected no record, got %+v", rec)
		}
	})

	t.Run("put before initialize", func(t *testing.T) {
		s := newTestStore(t)
		if err := s.PutCorrelation(ctx, "e1", "r1"); err != nil {
			t.Fatalf("PutCorrelation without Initialize failed: %v", err)
		}
	})

	t.Run("concurrent first use", func(t *testing.T) {
		s := newTestStore(t)
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.GetCorrelation(ctx, "missing")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("concurrent GetCorrelation failed: %v", err)
			}
		}
	})
}

func TestCorrelationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutCorrelation(ctx, "e1", "r1"); err != nil {
		t.Fatalf("PutCorrelation failed: %v", err)
	}

	tests := []struct {
		name      string
		triggerID string
		want      string
		found     bool
	}{
		{name: "known trigger", triggerID: "e1", want: "r1", found: true},
		{name: "unknown trigger", triggerID: "unknown", found: false},
		{name: "empty trigger", triggerID: "", found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := s.GetCorrelation(ctx, tt.triggerID)
			if err != nil {
				t.Fatalf("GetCorrelation returned error: %v", err)
			}
			if (rec != nil) != tt.found {
				t.Fatalf("expected found=%v, got %+v", tt.found, rec)
			}
			if rec != nil && rec.ResponseID != tt.want {
				t.Errorf("expected response id %q, got %q", tt.want, rec.ResponseID)
			}
		})
	}
}

func TestPutCorrelationDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutCorrelation(ctx, "e1", "r1"); err != nil {
		t.Fatalf("first PutCorrelation failed: %v", err)
	}

	err := s.PutCorrelation(ctx, "e1", "r2")
	if err == nil {
		t.Fatal("expected error on duplicate trigger id")
	}

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T: %v", err, err)
	}
	if storageErr.Op != "put" {
		t.Errorf("expected op put, got %q", storageErr.Op)
	}
	if !errors.Is(err, ErrDuplicateCorrelation) {
		t.Errorf("expected ErrDuplicateCorrelation, got %v", err)
	}

	rec, err := s.GetCorrelation(ctx, "e1")
	if err != nil {
		t.Fatalf("GetCorrelation failed: %v", err)
	}
	if rec == nil || rec.ResponseID != "r1" {
		t.Errorf("original correlation must be kept, got %+v", rec)
	}
}

func TestPutCorrelationRejectsEmptyIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, tc := range [][2]string{{"", "r1"}, {"e1", ""}} {
		err := s.PutCorrelation(ctx, tc[0], tc[1])
		var storageErr *StorageError
		if !errors.As(err, &storageErr) {
			t.Errorf("PutCorrelation(%q, %q): expected *StorageError, got %v", tc[0], tc[1], err)
		}
	}
}

func TestDeleteCorrelationsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"e1", "e2", "e3"} {
		if err := s.PutCorrelation(ctx, id, "r-"+id); err != nil {
			t.Fatalf("PutCorrelation(%s) failed: %v", id, err)
		}
	}

	deleted, err := s.DeleteCorrelationsBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteCorrelationsBefore failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected no deletions for a past cutoff, got %d", deleted)
	}

	deleted, err = s.DeleteCorrelationsBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteCorrelationsBefore failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deletions for a future cutoff, got %d", deleted)
	}

	rec, err := s.GetCorrelation(ctx, "e1")
	if err != nil {
		t.Fatalf("GetCorrelation failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected correlation to be removed, got %+v", rec)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := s.RunSQLMaintenance(ctx); err != nil {
		t.Fatalf("RunSQLMaintenance failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.RunSQLMaintenance(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewDBOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "missing directory", path: filepath.Join(t.TempDir(), "missing", "dir", "dad.db")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewDB(tt.path)
			if err == nil {
				CloseDB(db)
				t.Fatal("expected open error")
			}
			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("expected *StorageError, got %T: %v", err, err)
			}
			if storageErr.Op != "open" {
				t.Errorf("expected op open, got %q", storageErr.Op)
			}
		})
	}
}
