package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/logquarry/internal/domain"
)

func testTransport(t *testing.T) (*ShareTransport, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewShareTransport(root, `{host}/D$/Proj/LogFiles/{item}`, logger), root
}

func writeRemote(t *testing.T, root, host, item, name, content string, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(root, host, "D$", "Proj", "LogFiles", item)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestShareTransport_Resolve(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Picks Newest File", func(t *testing.T) {
		tr, root := testTransport(t)
		writeRemote(t, root, "host-a", "svc", "old.log", "old", base)
		want := writeRemote(t, root, "host-a", "svc", "new.log", "newer", base.Add(time.Hour))

		got, err := tr.Resolve(context.Background(), "host-a", "svc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("resolved %s, want %s", got.Path, want)
		}
		if got.Size != int64(len("newer")) {
			t.Errorf("size = %d, want %d", got.Size, len("newer"))
		}
	})

	t.Run("Ties Broken By Name Descending", func(t *testing.T) {
		tr, root := testTransport(t)
		writeRemote(t, root, "host-a", "svc", "a.log", "x", base)
		want := writeRemote(t, root, "host-a", "svc", "b.log", "y", base)

		got, err := tr.Resolve(context.Background(), "host-a", "svc")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Path != want {
			t.Errorf("resolved %s, want %s (name descending)", got.Path, want)
		}
	})

	t.Run("Missing Directory Is Unreachable", func(t *testing.T) {
		tr, _ := testTransport(t)
		_, err := tr.Resolve(context.Background(), "ghost", "svc")
		if !errors.Is(err, domain.ErrUnreachable) {
			t.Errorf("expected ErrUnreachable, got %v", err)
		}
	})

	t.Run("Empty Directory Is NoFilesFound", func(t *testing.T) {
		tr, root := testTransport(t)
		if err := os.MkdirAll(filepath.Join(root, "host-a", "D$", "Proj", "LogFiles", "svc"), 0755); err != nil {
			t.Fatal(err)
		}
		_, err := tr.Resolve(context.Background(), "host-a", "svc")
		if !errors.Is(err, domain.ErrNoFilesFound) {
			t.Errorf("expected ErrNoFilesFound, got %v", err)
		}
	})

	t.Run("UNC Style Template", func(t *testing.T) {
		root := t.TempDir()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		tr := NewShareTransport(root, `\\{host}\D$\Proj\LogFiles\{item}`, logger)

		dir := filepath.Join(root, "host-a", "D$", "Proj", "LogFiles", "svc")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "a.log"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := tr.Resolve(context.Background(), "host-a", "svc"); err != nil {
			t.Errorf("UNC template did not resolve: %v", err)
		}
	})
}

func TestShareTransport_OpenRange(t *testing.T) {
	tr, root := testTransport(t)
	path := writeRemote(t, root, "host-a", "svc", "a.log", "0123456789", time.Now())

	rc, err := tr.OpenRange(context.Background(), path, 3, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading range: %v", err)
	}
	if string(got) != "3456" {
		t.Errorf("range read = %q, want %q", got, "3456")
	}
}
