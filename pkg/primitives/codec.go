package primitives

// Encode substitutes every symbol of plaintext with its image under k.
// Spaces pass through unchanged. k must be a permutation of Alphabet.
func Encode(plaintext string, k Key) (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	out := make([]byte, len(plaintext))
	if err := translate(out, plaintext, &k); err != nil {
		return "", err
	}
	return string(out), nil
}

// Decode applies the inverse of k to ciphertext. Spaces pass through
// unchanged. k must be a permutation of Alphabet.
func Decode(ciphertext string, k Key) (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	inv := k.Inverse()
	out := make([]byte, len(ciphertext))
	if err := translate(out, ciphertext, &inv); err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeInto decodes src into dst using a table built by Key.Inverse.
// src must already be validated with CheckText and len(dst) >= len(src).
func DecodeInto(dst, src []byte, inv *Key) {
	for i, c := range src {
		if c == Space {
			dst[i] = Space
			continue
		}
		dst[i] = inv[c-'A']
	}
}

// CheckText returns an UnknownSymbolError for the first character of text
// that is neither an alphabet symbol nor a space.
func CheckText(text string) error {
	for i, r := range text {
		if r == Space {
			continue
		}
		if _, ok := IndexOf(r); !ok {
			return &UnknownSymbolError{Symbol: r, Offset: i}
		}
	}
	return nil
}

func translate(dst []byte, src string, table *Key) error {
	if err := CheckText(src); err != nil {
		return err
	}
	DecodeInto(dst, []byte(src), table)
	return nil
}
