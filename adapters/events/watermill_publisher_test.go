package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/core"
)

func TestPublishRoleChange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, NewZerologAdapter(zerolog.Nop()))
	defer pubsub.Close()

	msgs, err := pubsub.Subscribe(ctx, TopicRoleChanged)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubsub)
	require.NoError(t, pub.PublishRoleChange(ctx, "0xroot", "0xabc", core.RoleUser, core.RoleAdmin))

	select {
	case msg := <-msgs:
		var ev RoleChangeEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		msg.Ack()
		assert.Equal(t, "0xroot", ev.Actor)
		assert.Equal(t, "0xabc", ev.Target)
		assert.Equal(t, core.RoleUser, ev.From)
		assert.Equal(t, core.RoleAdmin, ev.To)
	case <-ctx.Done():
		t.Fatal("role change event not delivered")
	}
}

func TestPublishSignInAndLogout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, NewZerologAdapter(zerolog.Nop()))
	defer pubsub.Close()

	in, err := pubsub.Subscribe(ctx, TopicSignedIn)
	require.NoError(t, err)
	out, err := pubsub.Subscribe(ctx, TopicSignedOut)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubsub)
	go func() {
		_ = pub.PublishSignIn(ctx, "0xabc", "s1")
		_ = pub.PublishLogout(ctx, "0xabc", "s1")
	}()

	for _, ch := range []<-chan *message.Message{in, out} {
		select {
		case msg := <-ch:
			var ev SessionEvent
			require.NoError(t, json.Unmarshal(msg.Payload, &ev))
			msg.Ack()
			assert.Equal(t, "0xabc", ev.Address)
			assert.Equal(t, "s1", ev.SessionID)
		case <-ctx.Done():
			t.Fatal("session event not delivered")
		}
	}
}
