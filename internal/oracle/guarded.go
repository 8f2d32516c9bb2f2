package oracle

import (
	"context"
	"time"

	"zenith/internal/logger"
	"zenith/internal/pkg/circuit"
	"zenith/internal/pkg/errs"
	"zenith/internal/pkg/retry"
	"zenith/internal/types"
)

const (
	retryAttempts = 2
	retryBase     = 2 * time.Second
	retryMax      = 8 * time.Second
)

// Guarded wraps an Oracle with its own circuit breaker and bounded
// retries. It never returns an error: when the oracle is down, tripped or
// unparsable, the caller gets a neutral WAIT opinion that no guardrail
// chain can approve.
type Guarded struct {
	inner   Oracle
	breaker *circuit.Breaker
}

func NewGuarded(inner Oracle, breaker *circuit.Breaker) *Guarded {
	return &Guarded{inner: inner, breaker: breaker}
}

// Breaker exposes the breaker for the status endpoint.
func (g *Guarded) Breaker() *circuit.Breaker { return g.breaker }

func (g *Guarded) Advise(ctx context.Context, symbol string, snap types.TechnicalSnapshot, trend types.TrendAssessment) (types.AdvisoryOpinion, error) {
	var opinion types.AdvisoryOpinion
	err := retry.Do(ctx, retryAttempts, retryBase, retryMax, func() error {
		return g.breaker.Execute(func() error {
			var err error
			opinion, err = g.inner.Advise(ctx, symbol, snap, trend)
			return err
		})
	})
	if err != nil {
		wrapped := errs.External("oracle", "advise", err)
		logger.Warnf("oracle: advise for %s degraded to WAIT: %v", symbol, wrapped)
		return types.NeutralOpinion(wrapped.Error()), nil
	}
	return opinion, nil
}

var _ Oracle = (*Guarded)(nil)
