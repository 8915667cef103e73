package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erewok/multifaustus/clock"
	"github.com/erewok/multifaustus/types"
)

func TestVirtualDoesNotAdvanceOnItsOwn(t *testing.T) {
	start := time.Unix(0, 0)
	v := clock.NewVirtual(start)
	v.Schedule(clock.LeaderHeartbeat(), 100*time.Millisecond)

	assert.Empty(t, v.CheckTimers())
	assert.Equal(t, start, v.Now())
}

func TestVirtualFiresInOrder(t *testing.T) {
	start := time.Unix(0, 0)
	v := clock.NewVirtual(start)
	v.Schedule(clock.RetryProposal(2), 200*time.Millisecond)
	v.Schedule(clock.RetryProposal(1), 100*time.Millisecond)

	v.Advance(150 * time.Millisecond)
	fired := v.CheckTimers()
	require.Len(t, fired, 1)
	assert.Equal(t, uint64(1), fired[0].Slot)

	v.Advance(100 * time.Millisecond)
	fired = v.CheckTimers()
	require.Len(t, fired, 1)
	assert.Equal(t, uint64(2), fired[0].Slot)
}

func TestVirtualCancelRemovesMatchingAction(t *testing.T) {
	start := time.Unix(0, 0)
	v := clock.NewVirtual(start)
	ballot := types.NewBallotNumber(types.NewLeaderId(1))
	v.Schedule(clock.SendScout(ballot), 50*time.Millisecond)
	v.Cancel(clock.SendScout(ballot))

	v.Advance(100 * time.Millisecond)
	assert.Empty(t, v.CheckTimers())
}

func TestVirtualNextTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	v := clock.NewVirtual(start)
	_, ok := v.NextTimeout()
	assert.False(t, ok)

	v.Schedule(clock.CheckSlotWindow(), 30*time.Millisecond)
	d, ok := v.NextTimeout()
	require.True(t, ok)
	assert.Equal(t, 30*time.Millisecond, d)
}

func TestActionMatchesCustomByName(t *testing.T) {
	a := clock.Custom("foo")
	b := clock.Custom("foo")
	c := clock.Custom("bar")
	assert.True(t, a.Matches(b))
	assert.False(t, a.Matches(c))
}
