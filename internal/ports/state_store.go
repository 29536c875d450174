package ports

import (
	"context"

	"github.com/dkoval/poolctl/internal/domain"
)

// StateStore persists the full pool snapshot as one document. Load reports
// found=false when no snapshot exists yet; a present but unreadable snapshot
// is an error, never silently discarded.
type StateStore interface {
	Load(ctx context.Context) (state domain.PoolState, found bool, err error)
	Save(ctx context.Context, state domain.PoolState) error
}
