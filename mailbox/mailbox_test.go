package mailbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erewok/multifaustus/mailbox"
	"github.com/erewok/multifaustus/messages"
	"github.com/erewok/multifaustus/types"
)

func envelope(n int) messages.Envelope {
	addr := types.NewAddress("h", uint64(n))
	return messages.Envelope{Src: addr, Dst: addr, Payload: messages.P1a{Src: types.NewLeaderId(uint64(n))}}
}

func TestMailboxInboundFIFO(t *testing.T) {
	box := mailbox.New()
	box.Receive(envelope(1))
	box.Receive(envelope(2))

	require.Equal(t, 2, box.PendingInbound())
	first, ok := box.PopInbound()
	require.True(t, ok)
	assert.Equal(t, envelope(1), first)

	second, ok := box.PopInbound()
	require.True(t, ok)
	assert.Equal(t, envelope(2), second)

	_, ok = box.PopInbound()
	assert.False(t, ok)
}

func TestMailboxOutboundDrain(t *testing.T) {
	box := mailbox.New()
	box.Send(envelope(1))
	box.Send(envelope(2))

	drained := box.DrainOutbound()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, box.PendingOutbound())
}

func TestMailboxClear(t *testing.T) {
	box := mailbox.New()
	box.Receive(envelope(1))
	box.Send(envelope(1))

	box.ClearInbox()
	box.ClearOutbox()
	assert.Equal(t, 0, box.PendingInbound())
	assert.Equal(t, 0, box.PendingOutbound())
}
