package ports

import (
	"context"

	"merlt/domain/expert"
)

// QueryContext carries what an opinion producer needs for one round: the
// user query plus the previous round's synthesis, so experts can refine
// rather than restart.
type QueryContext struct {
	Query    string
	Round    int
	Previous *expert.Result
}

// OpinionProducer generates one expert opinion per round for a fixed
// interpretive perspective. How the content is produced (prompting, model
// choice) is outside this engine; producers are black boxes that either
// return an opinion or fail within the per-call timeout.
type OpinionProducer interface {
	// Perspective identifies the fixed lens this producer argues from.
	Perspective() expert.Perspective

	// Produce returns the expert's opinion for the round. Implementations
	// must honor ctx cancellation.
	Produce(ctx context.Context, qc QueryContext) (expert.Opinion, error)
}
