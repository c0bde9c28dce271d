package heuristic

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"merlt/domain/core"
	"merlt/domain/expert"
	"merlt/ports"
)

// Producer is a deterministic opinion producer used for development and
// tests. It derives a stance from the query text and its perspective, so a
// panel of producers yields stable, reproducible disagreement patterns
// without any external model behind it.
type Producer struct {
	id          core.ExpertID
	perspective expert.Perspective
}

// NewProducer creates a heuristic producer for one perspective
func NewProducer(perspective expert.Perspective) *Producer {
	return &Producer{
		id:          core.ExpertID("heuristic-" + string(perspective)),
		perspective: perspective,
	}
}

// NewPanel creates one heuristic producer per interpretive perspective
func NewPanel() []ports.OpinionProducer {
	perspectives := []expert.Perspective{
		expert.PerspectiveLiteral,
		expert.PerspectiveSystematic,
		expert.PerspectiveTeleological,
		expert.PerspectiveHistorical,
	}
	panel := make([]ports.OpinionProducer, 0, len(perspectives))
	for _, p := range perspectives {
		panel = append(panel, NewProducer(p))
	}
	return panel
}

// Perspective identifies the fixed lens this producer argues from
func (p *Producer) Perspective() expert.Perspective {
	return p.perspective
}

// Produce returns a deterministic opinion for the round. The position is
// derived from a hash of query and perspective; later rounds drift toward
// the previous synthesis, mimicking experts refining under feedback.
func (p *Producer) Produce(ctx context.Context, qc ports.QueryContext) (expert.Opinion, error) {
	select {
	case <-ctx.Done():
		return expert.Opinion{}, ctx.Err()
	default:
	}

	position := p.stance(qc.Query)
	confidence := p.confidence(qc.Query)

	// Refinement: once a previous synthesis exists, this producer adopts
	// its primary position unless strongly committed to its own stance.
	if qc.Previous != nil && qc.Round > 1 && confidence < 0.75 {
		position = qc.Previous.Primary.Position
		confidence = min(confidence+0.1, 1.0)
	}

	return expert.Opinion{
		ExpertID:    p.id,
		Perspective: p.perspective,
		Content:     p.argument(qc.Query, position),
		Position:    position,
		Confidence:  confidence,
		Citations: []expert.Citation{
			{Source: fmt.Sprintf("%s-reading", p.perspective), Passage: truncate(qc.Query, 80)},
		},
		ProducedAt: core.Now(),
	}, nil
}

func (p *Producer) stance(query string) string {
	if p.seed(query)%100 < 60 {
		return "affirmative"
	}
	return "restrictive"
}

func (p *Producer) confidence(query string) float64 {
	// Spread confidence over [0.5, 0.95] deterministically.
	return 0.5 + float64(p.seed(query)%46)/100
}

func (p *Producer) seed(query string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(query)))
	h.Write([]byte(p.perspective))
	return h.Sum32()
}

func (p *Producer) argument(query, position string) string {
	return fmt.Sprintf("From a %s reading, the %s interpretation governs: %s",
		p.perspective, position, truncate(query, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
