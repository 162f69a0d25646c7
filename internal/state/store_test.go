package state

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	logx "stockwatch/pkg/logx"
)

func openTemp(t *testing.T, driver string) (Store, string) {
	t.Helper()
	name := "state.json"
	if driver == "sqlite" {
		name = "state.db"
	}
	path := filepath.Join(t.TempDir(), name)
	s, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			s, path := openTemp(t, driver)

			s.Commit("A1", []string{"M", "L"})
			s.Commit("B2", []string{"XL"})
			s.Commit("C3", nil) // fully sold out, still tracked
			if err := s.Flush(context.Background()); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			re, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer re.Close()

			if got := re.Len(); got != 3 {
				t.Fatalf("Len = %d, want 3", got)
			}
			sizes, known := re.Get("A1")
			if !known || !reflect.DeepEqual(sizes, []string{"L", "M"}) {
				t.Fatalf("A1 = %v (known=%v), want [L M]", sizes, known)
			}
			if sizes, known := re.Get("C3"); !known || len(sizes) != 0 {
				t.Fatalf("C3 = %v (known=%v), want empty but known", sizes, known)
			}
		})
	}
}

func TestMissingFileMeansEmpty(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t, "file")
	if got := s.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
	if _, known := s.Get("A1"); known {
		t.Fatal("unexpected product in empty store")
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if got := s.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestCommitOverwrites(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t, "file")
	s.Commit("A1", []string{"M", "L"})
	s.Commit("A1", []string{"M"})

	sizes, _ := s.Get("A1")
	if !reflect.DeepEqual(sizes, []string{"M"}) {
		t.Fatalf("A1 = %v, want [M]", sizes)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t, "file")
	s.Commit("A1", []string{"M", "L"})

	sizes, _ := s.Get("A1")
	sizes[0] = "corrupted"

	again, _ := s.Get("A1")
	if !reflect.DeepEqual(again, []string{"L", "M"}) {
		t.Fatalf("store was mutated through Get: %v", again)
	}
}

func TestFlushIsIdempotent(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t, "file")
	s.Commit("A1", []string{"M"})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	// No commits in between: second flush must not rewrite.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Fatal("idle flush changed the file")
	}
}

func TestSQLiteFlushRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t, "sqlite")
	s.Commit("A1", []string{"M"})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Flush(canceled); err == nil {
		t.Fatal("expected flush error under canceled context")
	}

	// The row must still be pending: the next flush persists it without a
	// fresh commit in between.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	re, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()
	if sizes, known := re.Get("A1"); !known || !reflect.DeepEqual(sizes, []string{"M"}) {
		t.Fatalf("A1 = %v (known=%v), want [M]", sizes, known)
	}
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := Open(Config{Driver: "bolt", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
