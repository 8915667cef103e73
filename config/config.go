// Package config loads a types.Config from a JSON file on disk, the way
// a deployed node is given its cluster topology.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/erewok/multifaustus/types"
)

// FileFormat is the on-disk JSON shape for a types.Config. Addresses is a
// JSON object mapping each decimal NodeId to an {ip, port} entry; Replicas,
// Acceptors, and Leaders list which of those NodeIds play which role (a
// single NodeId may appear in more than one list).
type FileFormat struct {
	Replicas  []uint64            `json:"replicas"`
	Acceptors []uint64            `json:"acceptors"`
	Leaders   []uint64            `json:"leaders"`
	Addresses map[string]AddrJSON `json:"addresses"`
	Timeouts  *TimeoutsJSON       `json:"timeouts,omitempty"`
}

// AddrJSON is one entry of FileFormat.Addresses, keyed by decimal NodeId.
type AddrJSON struct {
	IP   string `json:"ip"`
	Port uint64 `json:"port"`
}

// TimeoutsJSON overrides types.DefaultTimeoutConfig when present.
type TimeoutsJSON struct {
	MinMillis      int64   `json:"min_millis"`
	MaxMillis      int64   `json:"max_millis"`
	Multiplier     float64 `json:"multiplier"`
	DecreaseMillis int64   `json:"decrease_millis"`
}

// LoadFromPath reads path and converts it into a types.Config.
func LoadFromPath(path string) (types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Config{}, err
	}
	var raw FileFormat
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.Config{}, fmt.Errorf("config: invalid JSON in %s: %w", path, err)
	}
	return raw.ToConfig()
}

// ToConfig converts the decoded JSON shape into a types.Config, resolving
// every referenced NodeId against Addresses.
func (f FileFormat) ToConfig() (types.Config, error) {
	addrByNode := make(map[types.NodeId]types.Address, len(f.Addresses))
	for key, a := range f.Addresses {
		var id uint64
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return types.Config{}, fmt.Errorf("config: invalid node id key %q: %w", key, err)
		}
		addrByNode[types.NodeId(id)] = types.Address{IP: a.IP, Port: a.Port}
	}

	replicas := make([]types.ReplicaId, len(f.Replicas))
	for i, id := range f.Replicas {
		replicas[i] = types.NewReplicaId(id)
	}
	acceptors := make([]types.AcceptorId, len(f.Acceptors))
	for i, id := range f.Acceptors {
		acceptors[i] = types.NewAcceptorId(id)
	}
	leaders := make([]types.LeaderId, len(f.Leaders))
	for i, id := range f.Leaders {
		leaders[i] = types.NewLeaderId(id)
	}

	timeouts := types.DefaultTimeoutConfig()
	if f.Timeouts != nil {
		timeouts = types.TimeoutConfig{
			MinTimeout:        time.Duration(f.Timeouts.MinMillis) * time.Millisecond,
			MaxTimeout:        time.Duration(f.Timeouts.MaxMillis) * time.Millisecond,
			TimeoutMultiplier: f.Timeouts.Multiplier,
			TimeoutDecrease:   time.Duration(f.Timeouts.DecreaseMillis) * time.Millisecond,
		}
	}
	cfg := types.NewConfig(replicas, acceptors, leaders, addrByNode, timeouts)

	for id := range cfg.Replicas {
		if _, ok := cfg.GetAddress(id.NodeId()); !ok {
			return types.Config{}, fmt.Errorf("config: replica %s has no address entry", id)
		}
	}
	for id := range cfg.Acceptors {
		if _, ok := cfg.GetAddress(id.NodeId()); !ok {
			return types.Config{}, fmt.Errorf("config: acceptor %s has no address entry", id)
		}
	}
	for id := range cfg.Leaders {
		if _, ok := cfg.GetAddress(id.NodeId()); !ok {
			return types.Config{}, fmt.Errorf("config: leader %s has no address entry", id)
		}
	}
	return cfg, nil
}
