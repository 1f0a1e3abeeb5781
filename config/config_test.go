package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/please-mesh/please/rpccore"
)

func TestBiasUnmarshal(t *testing.T) {
	var m BiasMap
	raw := `{"math": {"square": 250, "slow": "reject"}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	b, ok := m.Lookup("math", "square")
	require.True(t, ok)
	assert.False(t, b.Reject)
	assert.Equal(t, 250, b.Value)

	b, ok = m.Lookup("math", "slow")
	require.True(t, ok)
	assert.True(t, b.Reject)

	_, ok = m.Lookup("math", "missing")
	assert.False(t, ok)
	_, ok = m.Lookup("missing", "square")
	assert.False(t, ok)
}

func TestBiasUnmarshalInvalid(t *testing.T) {
	var b Bias
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &b))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &b))
}

func TestBiasRoundTrip(t *testing.T) {
	m := BiasMap{"math": {"square": {Value: 10}, "slow": {Reject: true}}}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var m2 BiasMap
	require.NoError(t, json.Unmarshal(raw, &m2))
	assert.Equal(t, m, m2)
}

func TestReferralList(t *testing.T) {
	c := &Config{}
	assert.Nil(t, c.ReferralList())

	c.Referrals = "b@h, c@h ,,d@h"
	assert.Equal(t, []rpccore.NodeID{"b@h", "c@h", "d@h"}, c.ReferralList())
}

func TestLatencyDefaults(t *testing.T) {
	c := &Config{}
	assert.Equal(t, DefaultPingLatency, c.PingInterval())
	assert.Equal(t, DefaultSyncLatency, c.SyncInterval())
	assert.Equal(t, DefaultAssignLatency, c.AssignInterval())
	assert.Equal(t, DefaultHandleLatency, c.HandleInterval())
	assert.Equal(t, DefaultPersistPath, c.PersistFilePath())

	c.PingLatency = 100
	c.HandleLatency = 1
	assert.Equal(t, 100*time.Millisecond, c.PingInterval())
	assert.Equal(t, time.Millisecond, c.HandleInterval())
}

func TestConfigJSONKeys(t *testing.T) {
	raw := `{
		"node_id": "a@h",
		"referrals": "b@h,c@h",
		"metadata": {"zone": "eu"},
		"busyness_weights": {"math": {"square": 50}},
		"busyness_offsets": {"math": {"square": "reject"}},
		"ping.latency": 500,
		"sync.latency": 1000,
		"assign_requests.latency": 5,
		"handle_requests.latency": 2
	}`
	var c Config
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, rpccore.NodeID("a@h"), c.NodeID)
	assert.Equal(t, "eu", c.Metadata["zone"])
	b, ok := c.BusynessWeights.Lookup("math", "square")
	require.True(t, ok)
	assert.Equal(t, 50, b.Value)
	b, ok = c.BusynessOffsets.Lookup("math", "square")
	require.True(t, ok)
	assert.True(t, b.Reject)
	assert.Equal(t, 500*time.Millisecond, c.PingInterval())
	assert.Equal(t, time.Second, c.SyncInterval())
	assert.Equal(t, 5*time.Millisecond, c.AssignInterval())
	assert.Equal(t, 2*time.Millisecond, c.HandleInterval())
}
