package ports

import (
	"context"

	"github.com/layer-3/beatauth/core"
)

// EventPublisher publishes auth events to notify other instances
type EventPublisher interface {
	PublishSignIn(ctx context.Context, address, sessionID string) error
	PublishLogout(ctx context.Context, address, sessionID string) error
	PublishRoleChange(ctx context.Context, actor, target string, from, to core.Role) error
}
