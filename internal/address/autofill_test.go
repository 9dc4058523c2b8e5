package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoFill_AppliesCurrentLookup(t *testing.T) {
	af := NewAutoFill()
	gen := af.Next()

	applied := af.Resolve(gen, Locality{District: "Pune", State: "Maharashtra"})

	require.True(t, applied)
	city, state := af.Fill()
	assert.Equal(t, "Pune", city)
	assert.Equal(t, "Maharashtra", state)
}

func TestAutoFill_DropsStaleLookup(t *testing.T) {
	af := NewAutoFill()

	stale := af.Next() // first pincode typed, lookup in flight
	_ = af.Next()      // user typed a new pincode before the result arrived

	applied := af.Resolve(stale, Locality{District: "Mumbai", State: "Maharashtra"})

	assert.False(t, applied)
	city, state := af.Fill()
	assert.Empty(t, city)
	assert.Empty(t, state)
}

func TestAutoFill_LatestWins(t *testing.T) {
	af := NewAutoFill()

	first := af.Next()
	second := af.Next()

	// results arrive out of order: latest first, then the stale one
	require.True(t, af.Resolve(second, Locality{District: "Nagpur", State: "Maharashtra"}))
	require.False(t, af.Resolve(first, Locality{District: "Mumbai", State: "Maharashtra"}))

	city, _ := af.Fill()
	assert.Equal(t, "Nagpur", city)
}

func TestAutoFill_PartialResultFillsOnlyPresentFields(t *testing.T) {
	af := NewAutoFill()
	require.True(t, af.Resolve(af.Next(), Locality{State: "Kerala"}))

	city, state := af.Fill()
	assert.Empty(t, city)
	assert.Equal(t, "Kerala", state)
}
