package primitives

// Alphabet is the ordered set of symbols a key permutes. The position of a
// symbol in Alphabet is its index throughout the solver.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// AlphabetSize is the number of symbols in Alphabet.
const AlphabetSize = len(Alphabet)

// Space separates words. It is never substituted.
const Space = ' '

// IndexOf returns the alphabet position of r.
func IndexOf(r rune) (int, bool) {
	if r < 'A' || r > 'Z' {
		return 0, false
	}
	return int(r - 'A'), true
}

// IsSymbol reports whether b is a member of Alphabet.
func IsSymbol(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// SymbolSet efficiently represents a set of alphabet symbols.
type SymbolSet struct {
	present [AlphabetSize]bool
	count   int
}

// Add adds a symbol to the set. It returns false if the symbol was already
// present.
func (s *SymbolSet) Add(b byte) bool {
	if !IsSymbol(b) {
		return false
	}
	if s.present[b-'A'] {
		return false
	}
	s.present[b-'A'] = true
	s.count++
	return true
}

// Contains checks if a symbol is in the set.
func (s *SymbolSet) Contains(b byte) bool {
	return IsSymbol(b) && s.present[b-'A']
}

// IsFull checks if every alphabet symbol is in the set.
func (s *SymbolSet) IsFull() bool {
	return s.count == AlphabetSize
}

// Count returns the number of symbols in the set.
func (s *SymbolSet) Count() int {
	return s.count
}
