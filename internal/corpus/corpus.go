// Package corpus loads training text for the language model from local files
// or from a BigQuery table.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineLength bounds a single line of a corpus file. Project Gutenberg
// texts sometimes put a whole paragraph on one line.
const maxLineLength = 1 << 20

// Normalize folds every run of whitespace, line breaks included, into a
// single space so that words on adjacent lines are not glued together when
// the model strips non-alphanumeric characters.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Read reads a corpus from r, one line at a time, joining lines with a
// single space.
func Read(ctx context.Context, r io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		line := strings.Join(strings.Fields(scanner.Text()), " ")
		if line == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// LoadFile reads the corpus stored at path.
func LoadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := Read(ctx, f)
	if err != nil {
		return "", fmt.Errorf("read corpus %s: %w", path, err)
	}
	return text, nil
}
