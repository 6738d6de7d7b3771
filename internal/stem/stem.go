// Package stem provides the suffix-stripping stemmers used by the text normalizer.
//
// Two algorithms are available:
//   - Lancaster (Paice/Husk), the default; aggressive and rule-table driven
//   - Porter2 (Snowball English), backed by github.com/kljensen/snowball
//
// Stemmers are stateless after construction and safe for concurrent use.
// A model trained with one stemmer must be served with the same one, so the
// stemmer identity (name plus rule digest) is part of the normalizer fingerprint.
package stem

import (
	"fmt"
	"strings"
)

// Stemmer reduces a single word to its stem.
type Stemmer interface {
	// Stem returns the stem of word. The result is lowercase.
	Stem(word string) string

	// Name identifies the algorithm (recorded in model artifacts).
	Name() string
}

const (
	// LancasterName is the configuration name of the Paice/Husk stemmer.
	LancasterName = "lancaster"
	// Porter2Name is the configuration name of the Snowball English stemmer.
	Porter2Name = "porter2"
)

// Identity returns the stemmer's name, qualified by a digest of its rule data
// when it has one ("lancaster@1a2b3c4d5e6f"). Names select an algorithm;
// identities tell two builds of it apart.
func Identity(s Stemmer) string {
	if d, ok := s.(interface{ Digest() string }); ok {
		return s.Name() + "@" + d.Digest()
	}
	return s.Name()
}

// Names lists the stemmers ByName accepts.
func Names() []string {
	return []string{LancasterName, Porter2Name}
}

// ByName returns the stemmer registered under name.
// An empty name selects Lancaster.
func ByName(name string) (Stemmer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LancasterName:
		return NewLancaster(), nil
	case Porter2Name, "snowball":
		return NewPorter2(), nil
	default:
		return nil, fmt.Errorf("unknown stemmer %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}
