package index

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "backlinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleContents(runID string) Contents {
	return Contents{
		Run: RunRow{RunID: runID, StartedAt: time.Now(), Documents: 3, Rewritten: []string{"t.md"}},
		Documents: []models.Document{
			{Path: "a.md", FrontMatter: models.FrontMatter{Permalink: "/a/", Title: "Alpha", HasTitle: true}, Mentions: []models.Mention{{Label: "x", Target: "/t/"}}},
			{Path: "b.md", FrontMatter: models.FrontMatter{Permalink: "/t/"}},
			{Path: "t.md", FrontMatter: models.FrontMatter{Permalink: "/t/", Title: "Target", HasTitle: true}, Managed: true},
		},
		Owners: map[string]string{"/a/": "a.md", "/t/": "t.md"},
		Backlinks: map[string][]models.Entry{
			"t.md": {
				{SourcePath: "a.md", SourcePermalink: "/a/", Title: "Alpha", Labels: []string{"x", "y"}},
				{SourcePath: "z.md", SourcePermalink: "/z/", Title: "Zed", Labels: []string{}},
			},
		},
		Conflicts: []models.Conflict{{Permalink: "/t/", Paths: []string{"b.md", "t.md"}, Winner: "t.md"}},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"documents", "backlinks", "conflicts", "runs"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestReplaceAndQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Replace(ctx, sampleContents("run-1")); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	docs, err := db.Documents(ctx)
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 3 || docs[0].Path != "a.md" || docs[0].Mentions != 1 {
		t.Fatalf("documents = %+v", docs)
	}

	d, err := db.Document(ctx, "/t/")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if d.Path != "t.md" || !d.Managed || !d.OwnsPermalink {
		t.Errorf("document = %+v, want owner t.md", d)
	}

	bl, err := db.Backlinks(ctx, "/t/")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 || bl[0].Title != "Alpha" || bl[1].Title != "Zed" {
		t.Fatalf("backlinks = %+v", bl)
	}
	if len(bl[0].Labels) != 2 || bl[0].Labels[1] != "y" {
		t.Errorf("labels = %v", bl[0].Labels)
	}

	conflicts, err := db.Conflicts(ctx)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 1 || len(conflicts[0].Paths) != 2 || conflicts[0].Winner != "t.md" {
		t.Errorf("conflicts = %+v", conflicts)
	}
}

func TestReplaceDropsPreviousSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Replace(ctx, sampleContents("run-1"))
	if err := db.Replace(ctx, Contents{Run: RunRow{RunID: "run-2", StartedAt: time.Now().Add(time.Second)}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	docs, _ := db.Documents(ctx)
	if len(docs) != 0 {
		t.Errorf("expected empty snapshot, got %d documents", len(docs))
	}
	bl, _ := db.Backlinks(ctx, "/t/")
	if len(bl) != 0 {
		t.Errorf("expected no backlinks, got %d", len(bl))
	}

	run, err := db.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if run.RunID != "run-2" {
		t.Errorf("latest run = %q, want run-2", run.RunID)
	}
}

func TestDocument_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Document(context.Background(), "/missing/")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestRun_Empty(t *testing.T) {
	db := testDB(t)
	_, err := db.LatestRun(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestRun_CorruptListIsError(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if err := db.Replace(ctx, sampleContents("run-1")); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := db.conn.Exec(`UPDATE runs SET failed = 'not json' WHERE run_id = 'run-1'`); err != nil {
		t.Fatal(err)
	}

	_, err := db.LatestRun(ctx)
	if err == nil || !strings.Contains(err.Error(), "decode failed") {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Replace(ctx, sampleContents("run-1"))

	results, err := db.Search(ctx, "Alph", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "a.md" {
		t.Errorf("search results = %+v, want 1 hit for a.md", results)
	}
}
