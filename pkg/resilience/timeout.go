package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// WithTimeout runs fn under a context that expires after timeout. fn is
// expected to honour ctx; WithTimeout itself does not abandon it. An error
// caused by the deadline also matches apperrors.ErrTimeout. A timeout <= 0
// runs fn under ctx unchanged.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(tctx)
	if err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return fmt.Errorf("%s: exceeded %v: %w: %w", name, timeout, apperrors.ErrTimeout, err)
	}
	return err
}
