package domain

import "context"

// Tool is a capability the model can invoke by name during a query. Execute
// returns the textual result handed back to the model plus the provenance of
// that result; provenance travels with the return value so concurrent
// queries never share source state.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, []SourceRef, error)
}
