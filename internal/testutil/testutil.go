// Package testutil provides shared test helpers for setting up corpora,
// snapshot databases and updaters.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/backlinker/internal/index"
	"github.com/starford/backlinker/internal/storage"
	"github.com/starford/backlinker/internal/updater"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "backlinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCorpus creates a temporary corpus directory holding files (relative
// slash paths to contents) and returns it with a storage provider.
func TestCorpus(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestUpdater wires an updater over store that snapshots into db.
func TestUpdater(store storage.Provider, db *index.DB, opts ...updater.Option) *updater.Updater {
	opts = append([]updater.Option{updater.WithLogger(Logger()), updater.WithSinks(index.NewSink(db))}, opts...)
	return updater.New(store, opts...)
}

// Note builds a document with front matter and, when managed, an empty
// mention block.
func Note(permalink, title, body string, managed bool) string {
	out := "---\npermalink: " + permalink + "\n"
	if title != "" {
		out += "title: " + title + "\n"
	}
	out += "---\n" + body
	if managed {
		out += "\n" + updater.DefaultStartMarker + "\n" + updater.DefaultEndMarker + "\n"
	}
	return out
}
