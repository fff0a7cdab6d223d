package transport

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInbox(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox(1)

	require.True(t, inbox.Deliver(ctx, "a", []byte(base64.StdEncoding.EncodeToString([]byte{1, 2}))))
	require.False(t, inbox.Deliver(ctx, "b", EncodePayload([]byte{3})))
	require.False(t, inbox.Deliver(ctx, "c", []byte("%%%")))

	ev := <-inbox.C()
	require.Equal(t, "a", ev.Channel)
	require.Equal(t, []byte{1, 2}, ev.Payload)
	require.False(t, ev.ReceivedAt.IsZero())

	inbox.Close(ctx)
	inbox.Close(ctx)
	require.False(t, inbox.Deliver(ctx, "d", EncodePayload([]byte{4})))
	_, ok := <-inbox.C()
	require.False(t, ok)

	require.Equal(t, InboxStats{Received: 4, Malformed: 1, Dropped: 2}, inbox.Stats())
}
