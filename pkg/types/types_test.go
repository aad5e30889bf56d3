package types

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeveritySentryLevel(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "info"},
		{SeverityMedium, "warning"},
		{SeverityHigh, "error"},
		{SeverityCritical, "fatal"},
		{Severity("bogus"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.severity.SentryLevel())
	}
}

func TestSeverityIsValid(t *testing.T) {
	assert.True(t, SeverityLow.IsValid())
	assert.True(t, SeverityCritical.IsValid())
	assert.False(t, Severity("").IsValid())
	assert.False(t, Severity("urgent").IsValid())
}

func TestTierForSeverity(t *testing.T) {
	assert.Equal(t, EscalationTier3, TierForSeverity(SeverityCritical))
	assert.Equal(t, EscalationTier2, TierForSeverity(SeverityHigh))
	assert.Equal(t, EscalationTier1, TierForSeverity(SeverityMedium))
	assert.Equal(t, EscalationTier1, TierForSeverity(SeverityLow))
	assert.Equal(t, EscalationTier1, TierForSeverity(Severity("bogus")))
}

func TestNewEventID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEventID()
		parts := strings.Split(id, "_")
		require.Len(t, parts, 3)
		assert.Equal(t, "lusotown", parts[0])
		assert.Len(t, parts[2], 9)

		assert.False(t, seen[id], "duplicate event id: %s", id)
		seen[id] = true
	}
}

func TestContextValueJSONRoundTrip(t *testing.T) {
	ctx := Context{
		"endpoint": S("homepage"),
		"attempts": N(3),
		"mobile":   B(true),
		"nested": M(Context{
			"score": N(0.25),
		}),
	}

	encoded, err := json.Marshal(ctx)
	require.NoError(t, err)

	var decoded Context
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, KindString, decoded["endpoint"].Kind())
	assert.Equal(t, "homepage", decoded["endpoint"].String())
	assert.Equal(t, 3.0, decoded["attempts"].Number())
	assert.True(t, decoded["mobile"].Bool())

	require.Equal(t, KindMap, decoded["nested"].Kind())
	assert.Equal(t, 0.25, decoded["nested"].Map()["score"].Number())
}

func TestContextValueRejectsArraysAndNull(t *testing.T) {
	var v Value
	assert.Error(t, v.UnmarshalJSON([]byte(`[1, 2, 3]`)))
	assert.Error(t, v.UnmarshalJSON([]byte(`null`)))
}

func TestContextValueNonFiniteNumbers(t *testing.T) {
	// JSON não representa NaN/Inf; o valor é serializado como string
	encoded, err := json.Marshal(N(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, `"NaN"`, string(encoded))

	encoded, err = json.Marshal(N(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, `"+Inf"`, string(encoded))
}

func TestContextMerge(t *testing.T) {
	base := Context{"a": S("base"), "b": N(1)}
	override := Context{"b": N(2), "c": B(true)}

	merged := base.Merge(override)
	assert.Equal(t, "base", merged["a"].String())
	assert.Equal(t, 2.0, merged["b"].Number())
	assert.True(t, merged["c"].Bool())

	// Os originais não são modificados
	assert.Equal(t, 1.0, base["b"].Number())

	var nilCtx Context
	assert.Len(t, nilCtx.Merge(override), 2)
	assert.Len(t, base.Merge(nil), 2)
}

func TestContextFlatten(t *testing.T) {
	ctx := Context{
		"name":  S("fado"),
		"count": N(4),
		"live":  B(false),
		"inner": M(Context{"x": S("y")}),
	}

	flat := ctx.Flatten()
	assert.Equal(t, "fado", flat["name"])
	assert.Equal(t, 4.0, flat["count"])
	assert.Equal(t, false, flat["live"])

	inner, ok := flat["inner"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "y", inner["x"])
}
