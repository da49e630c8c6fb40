package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/backlinker/internal/storage"
	"github.com/starford/backlinker/internal/updater"
)

func TestSink_StoresRunSnapshot(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"src.md": "---\npermalink: /src/\ntitle: Source\n---\n[ref](/t/){: .dsa-mention }\n",
		"t.md":   "---\npermalink: /t/\n---\n" + updater.DefaultStartMarker + "\n" + updater.DefaultEndMarker + "\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	db := testDB(t)
	u := updater.New(store,
		updater.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		updater.WithSinks(NewSink(db)))
	rep, err := u.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	bl, err := db.Backlinks(context.Background(), "/t/")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 1 || bl[0].SourcePermalink != "/src/" || bl[0].Title != "Source" {
		t.Fatalf("backlinks = %+v", bl)
	}

	run, err := db.LatestRun(context.Background())
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.RunID != rep.RunID || run.Documents != 2 || len(run.Rewritten) != 1 {
		t.Errorf("run = %+v", run)
	}
}
