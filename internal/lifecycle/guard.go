package lifecycle

import (
	"context"
	"sync"

	"github.com/aura-streams/backend/internal/apperr"
)

type guardKey struct{}

// guard serializes mutating operations. A call made with a context derived
// from an operation already inside the guard is rejected instead of blocking.
type guard struct {
	mu sync.Mutex
}

// enter acquires the guard. The caller must invoke release on every path;
// calls after the first are no-ops.
func (g *guard) enter(ctx context.Context) (_ context.Context, release func(), err error) {
	if owner, _ := ctx.Value(guardKey{}).(*guard); owner == g {
		return nil, nil, apperr.ErrReentrantCall
	}
	g.mu.Lock()
	var once sync.Once
	return context.WithValue(ctx, guardKey{}, g), func() { once.Do(g.mu.Unlock) }, nil
}
