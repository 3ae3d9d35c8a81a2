package primitives

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	k := IdentityKey()
	assert.Equal(t, Alphabet, k.String())
	assert.NoError(t, k.Validate())
	assert.Equal(t, k, k.Inverse())
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "QAZWSXEDCRFVTGBYHNUJMIKOLP", "QAZWSXEDCRFVTGBYHNUJMIKOLP", false},
		{"lower case", "zyxwvutsrqponmlkjihgfedcba", "ZYXWVUTSRQPONMLKJIHGFEDCBA", false},
		{"surrounding space", "  ABCDEFGHIJKLMNOPQRSTUVWXYZ\n", Alphabet, false},
		{"too short", "ABC", "", true},
		{"too long", Alphabet + "A", "", true},
		{"repeated symbol", "AACDEFGHIJKLMNOPQRSTUVWXYZ", "", true},
		{"non symbol", "ABCDEFGHIJKLMNOPQRSTUVWXY1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k.String())
		})
	}
}

func TestKey_ValidateRepeat(t *testing.T) {
	k := IdentityKey()
	k[3] = 'A'

	var cfgErr *ConfigError
	require.True(t, errors.As(k.Validate(), &cfgErr))
	assert.Equal(t, "key", cfgErr.Field)
}

func TestKey_SwapPreservesPermutation(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1024))
	k := IdentityKey()

	for range 10000 {
		i, j := rng.IntN(AlphabetSize), rng.IntN(AlphabetSize)
		next := k.Swap(i, j)
		require.NoError(t, next.Validate())
		assert.Equal(t, k[i], next[j])
		assert.Equal(t, k[j], next[i])
		k = next
	}
}

func TestKey_SwapDoesNotMutateReceiver(t *testing.T) {
	k := IdentityKey()
	_ = k.Swap(0, 25)
	assert.Equal(t, Alphabet, k.String())
}

func TestKey_Inverse(t *testing.T) {
	k, err := ParseKey("QAZWSXEDCRFVTGBYHNUJMIKOLP")
	require.NoError(t, err)

	inv := k.Inverse()
	for i, c := range k {
		assert.Equal(t, Alphabet[i], inv[c-'A'])
	}
	assert.Equal(t, IdentityKey(), inv.Inverse().Inverse().Inverse().Inverse())
}

func TestRandomKey_Reproducible(t *testing.T) {
	a := RandomKey(rand.New(rand.NewPCG(7, 7)))
	b := RandomKey(rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b)
	assert.NoError(t, a.Validate())
}

func TestSymbolSet(t *testing.T) {
	var s SymbolSet
	assert.True(t, s.Add('A'))
	assert.False(t, s.Add('A'))
	assert.False(t, s.Add(' '))
	assert.True(t, s.Contains('A'))
	assert.False(t, s.Contains('B'))
	assert.Equal(t, 1, s.Count())

	for i := range AlphabetSize {
		s.Add(Alphabet[i])
	}
	assert.True(t, s.IsFull())
}
