// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateNames(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestConnectionStateJSON(t *testing.T) {
	data, err := json.Marshal(ConnectionState{State: StateConnected, Brand: "roku"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"connected"`)

	var back ConnectionState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StateConnected, back.State)

	var bad State
	assert.Error(t, bad.UnmarshalText([]byte("asleep")))
}
