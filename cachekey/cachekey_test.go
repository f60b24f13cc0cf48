package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFieldOrderIndependent(t *testing.T) {
	opts := DefaultOptions()

	// Same object, different construction order of the nested fields.
	p1 := map[string]any{
		"data": map[string]any{"base": "ETH", "quote": "USD"},
	}
	p2 := map[string]any{
		"data": map[string]any{"quote": "USD", "base": "ETH"},
	}

	k1, err := Canonical(p1, ModeInclude, opts)
	require.NoError(t, err)
	k2, err := Canonical(p2, ModeInclude, opts)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestCanonicalTypeBlind(t *testing.T) {
	// A struct and a map with the same structural shape hash identically.
	type request struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
	}
	opts := DefaultOptions()

	k1, err := Canonical(map[string]any{"data": request{Base: "ETH", Quote: "USD"}}, ModeInclude, opts)
	require.NoError(t, err)
	k2, err := Canonical(map[string]any{"data": map[string]any{"base": "ETH", "quote": "USD"}}, ModeInclude, opts)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestCanonicalVolatileFieldsIgnored(t *testing.T) {
	opts := DefaultOptions()
	base := map[string]any{
		"id":   "1",
		"data": map[string]any{"base": "ETH"},
	}
	mutated := map[string]any{
		"id":    "totally-different",
		"debug": true,
		"meta":  map[string]any{"trace": "abc"},
		"data":  map[string]any{"base": "ETH"},
	}

	k1, err := Canonical(base, ModeExclude, opts)
	require.NoError(t, err)
	k2, err := Canonical(mutated, ModeExclude, opts)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	// Changing an included field changes the key.
	changed := map[string]any{
		"id":   "1",
		"data": map[string]any{"base": "BTC"},
	}
	k3, err := Canonical(changed, ModeExclude, opts)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestCanonicalIncludeDropsIgnoredPaths(t *testing.T) {
	opts := DefaultOptions()
	p1 := map[string]any{
		"data": map[string]any{
			"base":       "ETH",
			"resultPath": "price",
		},
		"meta": "noise outside the allow-list",
	}
	p2 := map[string]any{
		"data": map[string]any{
			"base":       "ETH",
			"resultPath": "marketcap",
		},
	}

	k1, err := Canonical(p1, ModeInclude, opts)
	require.NoError(t, err)
	k2, err := Canonical(p2, ModeInclude, opts)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestCanonicalArrayOrderSignificant(t *testing.T) {
	opts := DefaultOptions()
	p1 := map[string]any{"data": map[string]any{"legs": []string{"a", "b"}}}
	p2 := map[string]any{"data": map[string]any{"legs": []string{"b", "a"}}}

	k1, err := Canonical(p1, ModeInclude, opts)
	require.NoError(t, err)
	k2, err := Canonical(p2, ModeInclude, opts)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestCanonicalEmptyPayload(t *testing.T) {
	opts := DefaultOptions()

	k1, err := Canonical(nil, ModeExclude, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, k1)

	// nil and an empty object digest identically.
	k2, err := Canonical(map[string]any{}, ModeExclude, opts)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 40) // sha1 hex
}

func TestCanonicalUnhashablePayload(t *testing.T) {
	_, err := Canonical(map[string]any{"fn": func() {}}, ModeExclude, DefaultOptions())
	assert.ErrorIs(t, err, ErrDerivation)
}

func TestCanonicalStableAcrossCalls(t *testing.T) {
	opts := DefaultOptions()
	p := map[string]any{"data": map[string]any{"base": "ETH", "amount": 1.5}}
	k1, err := Canonical(p, ModeInclude, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		k, err := Canonical(p, ModeInclude, opts)
		require.NoError(t, err)
		assert.Equal(t, k1, k)
	}
}

func TestOptionsMerge(t *testing.T) {
	opts := DefaultOptions().Merge([]string{"extra", " data "}, []string{"sessionId", "", "id"})
	assert.Contains(t, opts.Included, "extra")
	assert.Contains(t, opts.Excluded, "sessionId")

	// Duplicates and blanks are dropped.
	count := 0
	for _, v := range opts.Excluded {
		if v == "id" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
