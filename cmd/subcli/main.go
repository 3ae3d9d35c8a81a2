// Command subcli breaks monoalphabetic substitution ciphers with an n-gram
// language model and randomized hill climbing.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
