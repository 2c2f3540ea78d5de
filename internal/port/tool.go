package port

import (
	"context"

	"kb/internal/domain"
)

// Tool is a described callable exposed to an orchestrating agent. The
// description is what the orchestrator uses to pick a tool; Run is the
// single request/response operation.
type Tool interface {
	Description() string

	// Run answers a free-text query with ranked text fragments. An
	// empty result set is a valid outcome, distinct from an error.
	Run(ctx context.Context, query string) (domain.ResultSet, error)
}
