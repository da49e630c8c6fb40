package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/testutil"
)

func testConfig(root string) *Config {
	cfg := NewDefaultConfig()
	cfg.Corpus.Root = root
	return cfg
}

func TestRun_Update(t *testing.T) {
	dir, _ := testutil.TestCorpus(t, map[string]string{
		"a.md": testutil.Note("/a/", "Alpha", "[heap](/t/){: .dsa-mention }\n", false),
		"t.md": testutil.Note("/t/", "Target", "", true),
	})

	var report bytes.Buffer
	err := Run(context.Background(),
		WithConfig(testConfig(dir)),
		WithLogger(testutil.Logger()),
		WithReport(&report),
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "t.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "- [Alpha](/a/){: .dsa-mention } — heap") {
		t.Errorf("t.md = %s", data)
	}
	if !strings.Contains(report.String(), `"t.md"`) {
		t.Errorf("report = %s", report.String())
	}
}

func TestRun_UpdateDryRun(t *testing.T) {
	original := testutil.Note("/t/", "Target", "", true)
	dir, _ := testutil.TestCorpus(t, map[string]string{
		"a.md": testutil.Note("/a/", "Alpha", "[heap](/t/){: .dsa-mention }\n", false),
		"t.md": original,
	})

	err := Run(context.Background(),
		WithConfig(testConfig(dir)),
		WithLogger(testutil.Logger()),
		WithDryRun(true),
	)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "t.md"))
	if string(data) != original {
		t.Errorf("dry run wrote t.md: %s", data)
	}
}

func TestRun_UpdateWithSnapshot(t *testing.T) {
	dir, _ := testutil.TestCorpus(t, map[string]string{
		"t.md": testutil.Note("/t/", "Target", "", true),
	})
	cfg := testConfig(dir)
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "snapshot.db")

	if err := Run(context.Background(), WithConfig(cfg), WithLogger(testutil.Logger())); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(cfg.SQLite.Path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
}

func TestRun_MissingCorpus(t *testing.T) {
	err := Run(context.Background(),
		WithConfig(testConfig(filepath.Join(t.TempDir(), "absent"))),
		WithLogger(testutil.Logger()),
	)
	if !errors.Is(err, apperr.ErrCorpusMissing) {
		t.Fatalf("err = %v, want ErrCorpusMissing", err)
	}
}

func TestRun_ServeRequiresSnapshot(t *testing.T) {
	err := Run(context.Background(),
		WithConfig(testConfig(t.TempDir())),
		WithLogger(testutil.Logger()),
		WithMode(ModeServe),
	)
	if err == nil || !strings.Contains(err.Error(), "sqlite.path") {
		t.Fatalf("err = %v", err)
	}
}

func TestRun_UnknownMode(t *testing.T) {
	err := Run(context.Background(),
		WithConfig(testConfig(t.TempDir())),
		WithLogger(testutil.Logger()),
		WithMode("bogus"),
	)
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRun_ConfigRequired(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}
