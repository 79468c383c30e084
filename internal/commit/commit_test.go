package commit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("0xabc", "bafyP", []string{"bafyB", "bafyC"}, 128)
	b := Fingerprint("0xabc", "bafyP", []string{"bafyB", "bafyC"}, 128)
	assert.Equal(t, a, b)
}

func TestFingerprintInvariantUnderBCIDOrder(t *testing.T) {
	a := Fingerprint("0xabc", "bafyP", []string{"bafyB", "bafyC"}, 128)
	b := Fingerprint("0xabc", "bafyP", []string{"bafyC", "bafyB"}, 128)
	assert.Equal(t, a, b)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("0xabc", "bafyP", []string{"bafyB"}, 128)

	assert.NotEqual(t, base, Fingerprint("0xdef", "bafyP", []string{"bafyB"}, 128))
	assert.NotEqual(t, base, Fingerprint("0xabc", "bafyQ", []string{"bafyB"}, 128))
	assert.NotEqual(t, base, Fingerprint("0xabc", "bafyP", []string{"bafyC"}, 128))
	assert.NotEqual(t, base, Fingerprint("0xabc", "bafyP", []string{"bafyB"}, 129))
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	// Length delimiting keeps adjacent fields from bleeding into each other.
	a := Fingerprint("ab", "c", nil, 0)
	b := Fingerprint("a", "bc", nil, 0)
	assert.NotEqual(t, a, b)
}

func TestCommitHashTruncation(t *testing.T) {
	h1 := CommitHash([]byte("result"))
	h2 := CommitHash([]byte("result"))
	h3 := CommitHash([]byte("other"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 16)
}

func TestCacheStoreLookup(t *testing.T) {
	c := NewCache(time.Minute, zap.NewNop())
	fp := Fingerprint("0x1", "bafyA", nil, 0)

	rec := Record{
		Result:           []byte{0x82, 0x01, 0x02},
		JustificationCID: "bafyJ",
		CommitHash:       CommitHash([]byte{0x82, 0x01, 0x02}),
	}
	c.Store(fp, rec)

	got, ok := c.Lookup(fp)
	require.True(t, ok)
	assert.Equal(t, rec.Result, got.Result)
	assert.Equal(t, rec.JustificationCID, got.JustificationCID)
	assert.Equal(t, rec.CommitHash, got.CommitHash)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(time.Minute, zap.NewNop())
	_, ok := c.Lookup(Fingerprint("0x1", "bafyNever", nil, 0))
	assert.False(t, ok)
}

func TestCacheExpiresAtExactTTL(t *testing.T) {
	ttl := time.Minute
	c := NewCache(ttl, zap.NewNop())
	fp := Fingerprint("0x1", "bafyA", nil, 0)

	// An entry exactly at TTL age is already expired.
	c.Store(fp, Record{Result: []byte{1}, CreatedAt: time.Now().Add(-ttl)})
	_, ok := c.Lookup(fp)
	assert.False(t, ok)

	// Just inside the window it is still served.
	c.Store(fp, Record{Result: []byte{1}, CreatedAt: time.Now().Add(-ttl + time.Second)})
	_, ok = c.Lookup(fp)
	assert.True(t, ok)
}

func TestCacheJanitorSweeps(t *testing.T) {
	c := NewCache(40*time.Millisecond, zap.NewNop())
	fp := Fingerprint("0x1", "bafyA", nil, 0)
	c.Store(fp, Record{Result: []byte{1}})

	time.Sleep(80 * time.Millisecond)

	_, ok := c.Lookup(fp)
	assert.False(t, ok)
}
