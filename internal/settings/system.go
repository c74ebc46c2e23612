package settings

import "context"

// System defines the settings store.
type System interface {
	Handler() *Handler

	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, cmd UpdateCommand) (*Settings, error)
}
