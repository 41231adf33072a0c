package probe

import (
	"context"
	"time"

	"github.com/felixgeelhaar/soundcheck/internal/asr"
)

// ModelsProbe considers the server ready once GET /v1/models answers
// with a non-empty model list. An empty list means the engine is up but
// still loading, so it stays in waiting.
type ModelsProbe struct {
	client *asr.Client
}

// NewModels creates a models-listing readiness probe. The client should
// carry a short request timeout; one attempt must fit inside a poll
// interval.
func NewModels(client *asr.Client) *ModelsProbe {
	return &ModelsProbe{client: client}
}

// Name returns the probe name.
func (p *ModelsProbe) Name() string {
	return "openai-models"
}

// Check queries the model listing once.
func (p *ModelsProbe) Check(ctx context.Context) *Result {
	start := time.Now()

	id, ok, err := p.client.FirstModel(ctx)
	latency := time.Since(start)

	if err != nil {
		return Waiting(err.Error()).WithLatency(latency)
	}
	if !ok {
		return Waiting("server answered but serves no models yet").WithLatency(latency)
	}

	return Ready("model list available").
		WithDetail("model", id).
		WithLatency(latency)
}
