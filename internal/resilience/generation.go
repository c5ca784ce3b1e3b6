package resilience

import (
	"context"

	"github.com/podiumworks/rostrum/pkg/provider/llm"
)

// Failover implements [llm.Provider] with automatic failover across several
// generation backends. Each backend sits behind its own breaker; when the
// primary fails or its breaker is open, the next healthy fallback answers.
type Failover struct {
	chain *Chain[llm.Provider]
}

var _ llm.Provider = (*Failover)(nil)

// NewFailover creates a Failover with primary as the preferred backend.
func NewFailover(name string, primary llm.Provider, cfg BreakerConfig) *Failover {
	return &Failover{chain: NewChain(name, primary, cfg)}
}

// Add registers an additional generation backend as a fallback.
func (f *Failover) Add(name string, provider llm.Provider) {
	f.chain.Add(name, provider)
}

// Complete sends the request to the first healthy backend.
func (f *Failover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Try(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
