package usecase

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-[0-9A-HJKMNP-TV-Z]{16}$`)

func TestOrderNumberGenerator_Format(t *testing.T) {
	clock := newStepClock(time.Date(2026, 7, 9, 23, 59, 0, 0, time.UTC), 0)
	g := NewOrderNumberGenerator(clock, bytes.NewReader(bytes.Repeat([]byte{0x42}, 64)))

	n, err := g.Next()
	require.NoError(t, err)
	assert.Regexp(t, orderNumberPattern, n)
	assert.Equal(t, "ORD-20260709-", n[:13])
}

func TestOrderNumberGenerator_SameEntropySameNumber(t *testing.T) {
	clock := newStepClock(t0, 0)
	entropy := bytes.Repeat([]byte{0x07}, 16)

	a, err := NewOrderNumberGenerator(clock, bytes.NewReader(entropy)).Next()
	require.NoError(t, err)
	b, err := NewOrderNumberGenerator(clock, bytes.NewReader(entropy)).Next()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOrderNumberGenerator_DefaultEntropyIsUnique(t *testing.T) {
	g := NewOrderNumberGenerator(newStepClock(t0, 0), nil)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		n, err := g.Next()
		require.NoError(t, err)
		assert.Regexp(t, orderNumberPattern, n)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

// 乱数の先頭側だけが違っても別の番号になる
func TestOrderNumberGenerator_UsesWholeRandomPart(t *testing.T) {
	clock := newStepClock(t0, 0)
	a := bytes.Repeat([]byte{0x11}, 10)
	b := append([]byte{0xEE}, a[1:]...)

	na, err := NewOrderNumberGenerator(clock, bytes.NewReader(a)).Next()
	require.NoError(t, err)
	nb, err := NewOrderNumberGenerator(clock, bytes.NewReader(b)).Next()
	require.NoError(t, err)

	assert.NotEqual(t, na, nb)
	assert.Equal(t, na[len(na)-8:], nb[len(nb)-8:], "only the leading random bytes differ")
}

func TestOrderNumberGenerator_EntropyExhausted(t *testing.T) {
	g := NewOrderNumberGenerator(newStepClock(t0, 0), bytes.NewReader([]byte{1, 2}))

	_, err := g.Next()
	assert.Error(t, err)
}
