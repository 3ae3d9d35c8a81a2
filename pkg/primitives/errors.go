package primitives

import "fmt"

// ConfigError reports an invalid parameter passed to the model or solver.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnknownSymbolError reports a character that is neither an alphabet symbol
// nor a space.
type UnknownSymbolError struct {
	Symbol rune
	Offset int
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unrecognized symbol %q at offset %d", e.Symbol, e.Offset)
}
