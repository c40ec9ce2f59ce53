package provider

import (
	"context"

	"article-inference/internal/inference"
)

// Prober reports the current availability of every registered backend. No
// result is cached across calls: platform availability changes as background
// downloads complete, so every selection decision probes fresh.
type Prober struct {
	providers []Provider
}

// NewProber wraps providers in registration order.
func NewProber(providers []Provider) *Prober {
	return &Prober{providers: providers}
}

// Probe returns one capability per backend, in registration order.
func (p *Prober) Probe(ctx context.Context, req inference.Request) []inference.Capability {
	caps := make([]inference.Capability, 0, len(p.providers))
	for _, prov := range p.providers {
		caps = append(caps, inference.Capability{
			Provider:     prov.ID(),
			Availability: prov.Probe(ctx, req),
		})
	}
	return caps
}
