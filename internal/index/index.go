package index

import (
	"context"

	"github.com/starford/backlinker/internal/models"
)

// Snapshot defines the read side of the index. Consumers should depend on
// this interface rather than the concrete *DB type.
type Snapshot interface {
	Documents(ctx context.Context) ([]DocumentRow, error)
	Document(ctx context.Context, permalink string) (*DocumentRow, error)
	Backlinks(ctx context.Context, permalink string) ([]BacklinkRow, error)
	Conflicts(ctx context.Context) ([]models.Conflict, error)
	LatestRun(ctx context.Context) (*RunRow, error)
	Search(ctx context.Context, query string, limit int) ([]DocumentRow, error)
}

// Verify *DB satisfies Snapshot at compile time.
var _ Snapshot = (*DB)(nil)
