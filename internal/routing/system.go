package routing

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the routing policy engine.
type System interface {
	Handler() *Handler

	Policy(ctx context.Context) (*Policy, error)
	UpdatePolicy(ctx context.Context, p Policy) (*Policy, error)

	ListRules(ctx context.Context, page pagination.PageRequest, filters RuleFilters) (*pagination.PageResult[Rule], error)
	FindRule(ctx context.Context, id uuid.UUID) (*Rule, error)
	CreateRule(ctx context.Context, cmd RuleCommand) (*Rule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, cmd RuleCommand) (*Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// Route loads the current configuration and selects an engine. It takes
	// no document locks and caches nothing.
	Route(ctx context.Context, req Request) (*Decision, error)
}
