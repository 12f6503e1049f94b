package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHashDeterministic(t *testing.T) {
	a := NewHash([]byte("site-selection"))
	b := NewHash([]byte("site-selection"))
	assert.Equal(t, a, b)
	assert.False(t, a.IsEmpty())
}

func TestNewHashDiffersOnDifferentInput(t *testing.T) {
	a := NewHash([]byte("alpha"))
	b := NewHash([]byte("beta"))
	assert.False(t, a.Equals(b))
}

func TestComputeSortedHashOrderIndependent(t *testing.T) {
	a := ComputeSortedHash([]string{"c1", "c2", "c3"})
	b := ComputeSortedHash([]string{"c3", "c1", "c2"})
	assert.Equal(t, a, b)
}

func TestComputeSortedHashDiffersOnDifferentSet(t *testing.T) {
	a := ComputeSortedHash([]string{"c1", "c2"})
	b := ComputeSortedHash([]string{"c1", "c2", "c3"})
	assert.NotEqual(t, a, b)
}

func TestComputeMapHashOrderIndependent(t *testing.T) {
	a := ComputeMapHash(map[string]interface{}{"targetK": 10, "mode": "Balanced"})
	b := ComputeMapHash(map[string]interface{}{"mode": "Balanced", "targetK": 10})
	assert.Equal(t, a, b)
}

func TestScenarioHashAndConfigHashAreDistinctDomains(t *testing.T) {
	data := []byte("same-bytes")
	cfgHash := NewConfigHash(data)
	scenarioHash := NewScenarioHash(data)
	assert.Equal(t, cfgHash.String(), scenarioHash.String()) // same underlying sha256, distinct Go types
}
