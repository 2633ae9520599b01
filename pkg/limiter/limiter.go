package limiter

import (
	"context"

	"github.com/menta2k/layout-viewer/pkg/client"
	"github.com/menta2k/layout-viewer/pkg/types"

	"golang.org/x/time/rate"
)

type Limiter interface {
	limiterSetup()
}

type LayoutClient interface {
	Limiter
	client.LayoutClient
}

type limitedLayoutClient struct {
	limiter  *rate.Limiter
	provider client.LayoutClient
}

// New wraps p so that calls wait for a token of l. A nil limiter disables it.
func New(l *rate.Limiter, p client.LayoutClient) LayoutClient {
	return &limitedLayoutClient{
		limiter:  l,
		provider: p,
	}
}

// PerMinute builds a limiter allowing n calls per minute, nil when n <= 0
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(float64(n)/60), 1)
}

func (p *limitedLayoutClient) limiterSetup() {
}

func (p *limitedLayoutClient) DetectLayout(ctx context.Context, upload client.Upload) (*types.Result, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return p.provider.DetectLayout(ctx, upload)
}
