/*
 * Project: please
 * ---------------------
 * A peer-to-peer mesh for balancing remote function invocations.
 */

// Package config holds the process-wide mesh configuration. All keys are
// optional; zero values fall back to the documented defaults.
package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/please-mesh/please/rpccore"
	"github.com/please-mesh/please/utils"
)

const (
	DefaultPingLatency   = 1500 * time.Millisecond
	DefaultSyncLatency   = 3000 * time.Millisecond
	DefaultAssignLatency = 20 * time.Millisecond
	DefaultHandleLatency = 10 * time.Millisecond

	// DefaultPersistPath is where the reachable node list is persisted.
	DefaultPersistPath = "priv/please/persisted_nodes.dat"

	DefaultRPCTimeout = 4 * time.Second
)

// Bias is a scheduling bias for one module.function: either an integer or
// the literal "reject". It appears as the value type of both the
// busyness_weights and busyness_offsets maps.
type Bias struct {
	Reject bool
	Value  int
}

func (b *Bias) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return errors.WithStack(err)
		}
		if s != "reject" {
			return errors.Errorf("invalid bias %q, want an integer or \"reject\"", s)
		}
		b.Reject = true
		b.Value = 0
		return nil
	}
	b.Reject = false
	return errors.WithStack(json.Unmarshal(trimmed, &b.Value))
}

func (b Bias) MarshalJSON() ([]byte, error) {
	if b.Reject {
		return json.Marshal("reject")
	}
	return json.Marshal(b.Value)
}

// BiasMap maps module -> function -> bias.
type BiasMap map[string]map[string]Bias

// Lookup returns the bias configured for module.function.
func (m BiasMap) Lookup(module, function string) (Bias, bool) {
	funcs, ok := m[module]
	if !ok {
		return Bias{}, false
	}
	b, ok := funcs[function]
	return b, ok
}

// Config is the full configuration of one mesh node. The zero value is a
// usable single-node configuration (no referrals, default latencies).
type Config struct {
	NodeID rpccore.NodeID `json:"node_id"`

	// Referrals is a comma-separated list of peer names used to bootstrap
	// membership at startup and on every ping cycle.
	Referrals string `json:"referrals"`

	// Metadata is advertised to peers once per ping cycle.
	Metadata map[string]interface{} `json:"metadata"`

	BusynessWeights BiasMap `json:"busyness_weights"`
	BusynessOffsets BiasMap `json:"busyness_offsets"`

	// Per-task latencies in milliseconds; zero means default.
	PingLatency   int `json:"ping.latency"`
	SyncLatency   int `json:"sync.latency"`
	AssignLatency int `json:"assign_requests.latency"`
	HandleLatency int `json:"handle_requests.latency"`

	// PersistPath overrides where the reachable node list is written.
	PersistPath string `json:"persist_path"`

	// TCP deployment only.
	ListenAddr  string                    `json:"listen_addr"`
	NodeAddrMap map[rpccore.NodeID]string `json:"node_addr_map"`
	TimeoutSec  int                       `json:"timeout"`
}

// ReadFromFile loads a Config from a JSON file.
func ReadFromFile(filepath string) (*Config, error) {
	var c Config
	if err := utils.ReadFromJSON(&c, filepath); err != nil {
		return nil, err
	}
	return &c, nil
}

// ReferralList parses the comma-separated referrals key. A nil/empty value
// yields no seeds.
func (c *Config) ReferralList() []rpccore.NodeID {
	if c.Referrals == "" {
		return nil
	}
	parts := strings.Split(c.Referrals, ",")
	referrals := make([]rpccore.NodeID, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			referrals = append(referrals, rpccore.NodeID(p))
		}
	}
	return referrals
}

func (c *Config) PingInterval() time.Duration {
	return latency(c.PingLatency, DefaultPingLatency)
}

func (c *Config) SyncInterval() time.Duration {
	return latency(c.SyncLatency, DefaultSyncLatency)
}

func (c *Config) AssignInterval() time.Duration {
	return latency(c.AssignLatency, DefaultAssignLatency)
}

func (c *Config) HandleInterval() time.Duration {
	return latency(c.HandleLatency, DefaultHandleLatency)
}

func (c *Config) PersistFilePath() string {
	if c.PersistPath == "" {
		return DefaultPersistPath
	}
	return c.PersistPath
}

func (c *Config) RPCTimeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return DefaultRPCTimeout
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func latency(ms int, fallback time.Duration) time.Duration {
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
