package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/backlinker/internal/apperr"
	"github.com/starford/backlinker/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path          string `json:"path"`
	Permalink     string `json:"permalink,omitempty"`
	Title         string `json:"title,omitempty"`
	HasTitle      bool   `json:"has_title"`
	Checksum      string `json:"checksum"`
	Managed       bool   `json:"managed"`
	OwnsPermalink bool   `json:"owns_permalink"`
	Mentions      int    `json:"mentions"`
}

// BacklinkRow is one rendered "mentioned by" entry of a target.
type BacklinkRow struct {
	TargetPath string `json:"target_path"`
	models.Entry
}

// RunRow summarizes a stored run.
type RunRow struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	DryRun    bool          `json:"dry_run"`
	Documents int           `json:"documents"`
	Rewritten []string      `json:"rewritten"`
	Failed    []string      `json:"failed"`
}

// Contents is everything a snapshot stores for one run.
type Contents struct {
	Run       RunRow
	Documents []models.Document
	Owners    map[string]string
	Backlinks map[string][]models.Entry
	Conflicts []models.Conflict
}

// Replace swaps the whole snapshot for c inside one transaction.
func (db *DB) Replace(ctx context.Context, c Contents) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"documents", "backlinks", "conflicts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (path, permalink, title, has_title, checksum, managed, owns_permalink, mentions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare document insert: %w", err)
	}
	defer docStmt.Close()
	for _, d := range c.Documents {
		p := d.FrontMatter.Permalink
		owns := p != "" && c.Owners[p] == d.Path
		if _, err := docStmt.ExecContext(ctx, d.Path, p, d.FrontMatter.Title, d.FrontMatter.HasTitle,
			d.Checksum, d.Managed, owns, len(d.Mentions)); err != nil {
			return fmt.Errorf("index: insert document: %w", err)
		}
	}

	blStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backlinks (target_path, source_permalink, source_path, title, labels, position)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare backlink insert: %w", err)
	}
	defer blStmt.Close()
	for target, entries := range c.Backlinks {
		for pos, e := range entries {
			labels, _ := json.Marshal(e.Labels)
			if _, err := blStmt.ExecContext(ctx, target, e.SourcePermalink, e.SourcePath, e.Title, string(labels), pos); err != nil {
				return fmt.Errorf("index: insert backlink: %w", err)
			}
		}
	}

	for _, cf := range c.Conflicts {
		for _, p := range cf.Paths {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO conflicts (permalink, path, winner) VALUES (?, ?, ?)`,
				cf.Permalink, p, cf.Winner); err != nil {
				return fmt.Errorf("index: insert conflict: %w", err)
			}
		}
	}

	rewritten, _ := json.Marshal(nonNil(c.Run.Rewritten))
	failed, _ := json.Marshal(nonNil(c.Run.Failed))
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, duration_ms, dry_run, documents, rewritten, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Run.RunID, c.Run.StartedAt.UTC(), c.Run.Duration.Milliseconds(), c.Run.DryRun, c.Run.Documents,
		string(rewritten), string(failed)); err != nil {
		return fmt.Errorf("index: insert run: %w", err)
	}

	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const documentColumns = `path, permalink, title, has_title, checksum, managed, owns_permalink, mentions`

func scanDocuments(rows *sql.Rows) ([]DocumentRow, error) {
	defer rows.Close()
	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.Path, &d.Permalink, &d.Title, &d.HasTitle, &d.Checksum,
			&d.Managed, &d.OwnsPermalink, &d.Mentions); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Documents returns every document of the snapshot ordered by path.
func (db *DB) Documents(ctx context.Context) ([]DocumentRow, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: documents: %w", err)
	}
	return scanDocuments(rows)
}

// Document returns the document owning permalink. The argument is expected
// in normalized form.
func (db *DB) Document(ctx context.Context, permalink string) (*DocumentRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE permalink = ? AND owns_permalink = 1`, permalink)
	if err != nil {
		return nil, fmt.Errorf("index: document: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &docs[0], nil
}

// Backlinks returns the entries rendered for the document owning permalink,
// in rendering order.
func (db *DB) Backlinks(ctx context.Context, permalink string) ([]BacklinkRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT b.target_path, b.source_permalink, b.source_path, b.title, b.labels
		FROM backlinks b
		JOIN documents d ON d.path = b.target_path
		WHERE d.permalink = ? AND d.owns_permalink = 1
		ORDER BY b.position
	`, permalink)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	out := []BacklinkRow{}
	for rows.Next() {
		var r BacklinkRow
		var labels string
		if err := rows.Scan(&r.TargetPath, &r.SourcePermalink, &r.SourcePath, &r.Title, &labels); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(labels), &r.Labels); err != nil {
			return nil, fmt.Errorf("index: decode labels: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Conflicts returns the permalink collisions of the snapshot.
func (db *DB) Conflicts(ctx context.Context) ([]models.Conflict, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT permalink, path, winner FROM conflicts ORDER BY permalink, path`)
	if err != nil {
		return nil, fmt.Errorf("index: conflicts: %w", err)
	}
	defer rows.Close()

	out := []models.Conflict{}
	for rows.Next() {
		var permalink, path, winner string
		if err := rows.Scan(&permalink, &path, &winner); err != nil {
			return nil, err
		}
		if n := len(out); n > 0 && out[n-1].Permalink == permalink {
			out[n-1].Paths = append(out[n-1].Paths, path)
			continue
		}
		out = append(out, models.Conflict{Permalink: permalink, Paths: []string{path}, Winner: winner})
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run stored.
func (db *DB) LatestRun(ctx context.Context) (*RunRow, error) {
	var r RunRow
	var durationMS int64
	var rewritten, failed string
	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id, started_at, duration_ms, dry_run, documents, rewritten, failed
		FROM runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&r.RunID, &r.StartedAt, &durationMS, &r.DryRun, &r.Documents, &rewritten, &failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: latest run: %w", err)
	}
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(rewritten), &r.Rewritten); err != nil {
		return nil, fmt.Errorf("index: latest run: decode rewritten: %w", err)
	}
	if err := json.Unmarshal([]byte(failed), &r.Failed); err != nil {
		return nil, fmt.Errorf("index: latest run: decode failed: %w", err)
	}
	return &r, nil
}

// Search performs a LIKE-based search over path, permalink and title.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]DocumentRow, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE title LIKE ? OR permalink LIKE ? OR path LIKE ?
		ORDER BY path
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanDocuments(rows)
}
