package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

const (
	TopicSignedIn    = "beatauth.signed_in"
	TopicSignedOut   = "beatauth.signed_out"
	TopicRoleChanged = "beatauth.role_changed"
)

// SessionEvent is published on sign-in and logout
type SessionEvent struct {
	Address   string    `json:"address"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// RoleChangeEvent is published on every role promotion or demotion
type RoleChangeEvent struct {
	Actor  string    `json:"actor"`
	Target string    `json:"target"`
	From   core.Role `json:"from"`
	To     core.Role `json:"to"`
	At     time.Time `json:"at"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	now       func() time.Time
}

// NewWatermillPublisher creates a new Watermill-backed event publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, now: time.Now}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishSignIn publishes a sign-in event
func (p *WatermillPublisher) PublishSignIn(ctx context.Context, address, sessionID string) error {
	return p.publish(ctx, TopicSignedIn, SessionEvent{Address: address, SessionID: sessionID, At: p.now()})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	return p.publish(ctx, TopicSignedOut, SessionEvent{Address: address, SessionID: sessionID, At: p.now()})
}

// PublishRoleChange publishes a role change audit event
func (p *WatermillPublisher) PublishRoleChange(ctx context.Context, actor, target string, from, to core.Role) error {
	return p.publish(ctx, TopicRoleChanged, RoleChangeEvent{Actor: actor, Target: target, From: from, To: to, At: p.now()})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher drops every event. Used when events are disabled.
type NopPublisher struct{}

var _ ports.EventPublisher = NopPublisher{}

func (NopPublisher) PublishSignIn(context.Context, string, string) error { return nil }
func (NopPublisher) PublishLogout(context.Context, string, string) error { return nil }
func (NopPublisher) PublishRoleChange(context.Context, string, string, core.Role, core.Role) error {
	return nil
}
