package primitives

import (
	"math/rand/v2"
	"strings"
)

// Key is a permutation of Alphabet. Key[i] is the ciphertext symbol that
// replaces the plaintext symbol Alphabet[i].
type Key [AlphabetSize]byte

// IdentityKey returns the key that maps every symbol to itself.
func IdentityKey() Key {
	var k Key
	copy(k[:], Alphabet)
	return k
}

// RandomKey returns a uniformly shuffled key drawn from rand.
func RandomKey(rand *rand.Rand) Key {
	k := IdentityKey()
	rand.Shuffle(len(k), func(i, j int) {
		k[i], k[j] = k[j], k[i]
	})
	return k
}

// ParseKey parses a 26 symbol key such as "QAZWSXEDCRFVTGBYHNUJMIKOLP".
// Lower-case symbols are accepted.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != AlphabetSize {
		return k, &ConfigError{Field: "key", Reason: "must contain exactly 26 symbols"}
	}
	copy(k[:], s)
	return k, k.Validate()
}

// Validate checks that k is a permutation of Alphabet.
func (k Key) Validate() error {
	var seen SymbolSet
	for i, c := range k {
		if !IsSymbol(c) {
			return &UnknownSymbolError{Symbol: rune(c), Offset: i}
		}
		if !seen.Add(c) {
			return &ConfigError{Field: "key", Reason: "symbol " + string(rune(c)) + " repeats"}
		}
	}
	return nil
}

// Swap returns a copy of k with positions i and j exchanged.
func (k Key) Swap(i, j int) Key {
	k[i], k[j] = k[j], k[i]
	return k
}

// Reverse returns a copy of k in reverse order.
func (k Key) Reverse() Key {
	for i, j := 0, len(k)-1; i < j; i, j = i+1, j-1 {
		k[i], k[j] = k[j], k[i]
	}
	return k
}

// Inverse returns the decoding table of k: Inverse()[c-'A'] is the plaintext
// symbol for ciphertext symbol c. k must already satisfy Validate.
func (k Key) Inverse() Key {
	var inv Key
	for i, c := range k {
		inv[c-'A'] = Alphabet[i]
	}
	return inv
}

func (k Key) String() string {
	return string(k[:])
}

func (k Key) MarshalText() ([]byte, error) {
	return k[:], nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
