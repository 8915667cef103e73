package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erewok/multifaustus/types"
)

func TestBallotNumberOrdering(t *testing.T) {
	l1 := types.NewLeaderId(1)
	l2 := types.NewLeaderId(2)

	b0 := types.NewBallotNumber(l1)
	b1 := types.BallotNumber{Round: 1, Leader: l1}
	b1other := types.BallotNumber{Round: 1, Leader: l2}

	assert.True(t, b0.Less(b1))
	assert.True(t, b1.GreaterThan(b0))
	assert.False(t, b0.GreaterThan(b1))
	assert.True(t, b1.AtLeast(b1))
	assert.True(t, b1.Less(b1other))
}

func TestCommandKeyAndEqual(t *testing.T) {
	c1 := types.NewOpCommand(types.NodeId(7), 42, []byte("hi"))
	c2 := types.NewOpCommand(types.NodeId(7), 42, []byte("hi"))
	c3 := types.NewOpCommand(types.NodeId(7), 43, []byte("hi"))

	assert.Equal(t, c1.Key(), c2.Key())
	assert.True(t, c1.Equal(c2))
	assert.False(t, c1.Equal(c3))
	assert.NotEqual(t, c1.Key(), c3.Key())
}

func TestReconfigCommandCarriesClonedConfig(t *testing.T) {
	cfg := types.NewConfig(
		[]types.ReplicaId{types.NewReplicaId(1)},
		[]types.AcceptorId{types.NewAcceptorId(2)},
		[]types.LeaderId{types.NewLeaderId(3)},
		map[types.NodeId]types.Address{
			types.NodeId(1): types.NewAddress("a", 1),
			types.NodeId(2): types.NewAddress("b", 2),
			types.NodeId(3): types.NewAddress("c", 3),
		},
		types.TimeoutConfig{},
	)
	cmd := types.NewReconfigCommand(types.NodeId(9), 1, cfg)
	require.True(t, cmd.IsReconfig())

	cfg.Replicas[types.NewReplicaId(99)] = struct{}{}
	assert.Len(t, cmd.Reconfig.Replicas, 1, "mutating the original config must not affect the cloned copy stored on the command")
}

func TestConfigQuorum(t *testing.T) {
	cfg := types.NewConfig(
		nil,
		[]types.AcceptorId{types.NewAcceptorId(1), types.NewAcceptorId(2), types.NewAcceptorId(3)},
		nil,
		nil,
		types.TimeoutConfig{},
	)
	assert.Equal(t, 2, cfg.Quorum())

	cfg2 := types.NewConfig(nil, []types.AcceptorId{types.NewAcceptorId(1), types.NewAcceptorId(2)}, nil, nil, types.TimeoutConfig{})
	assert.Equal(t, 2, cfg2.Quorum())
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := types.NewConfig(
		[]types.ReplicaId{types.NewReplicaId(1)},
		nil, nil,
		map[types.NodeId]types.Address{types.NodeId(1): types.NewAddress("x", 1)},
		types.TimeoutConfig{},
	)
	clone := cfg.Clone()
	clone.Replicas[types.NewReplicaId(2)] = struct{}{}
	assert.Len(t, cfg.Replicas, 1)
	assert.Len(t, clone.Replicas, 2)
	assert.True(t, cfg.Equal(cfg))
	assert.False(t, cfg.Equal(clone))
}

func TestDefaultTimeoutConfigValues(t *testing.T) {
	d := types.DefaultTimeoutConfig()
	assert.Equal(t, 1.5, d.TimeoutMultiplier)
}
