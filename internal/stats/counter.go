package stats

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures text length in some unit.
type Counter interface {
	Count(text string) int
	Name() string
}

// Unit selects a Counter.
type Unit int

const (
	Words Unit = iota
	Characters
	Tokens // cl100k_base, as seen by OpenAI models
)

func (u Unit) String() string {
	switch u {
	case Words:
		return "words"
	case Characters:
		return "characters"
	case Tokens:
		return "tokens"
	default:
		return "unknown"
	}
}

// ParseUnit resolves a unit name as given on the command line.
func ParseUnit(name string) (Unit, error) {
	switch strings.ToLower(name) {
	case "", "words", "word":
		return Words, nil
	case "characters", "chars", "char":
		return Characters, nil
	case "tokens", "token":
		return Tokens, nil
	default:
		return 0, fmt.Errorf("unknown unit %q (want words, characters or tokens)", name)
	}
}

// NewCounter returns the Counter for unit. Token counting needs the
// cl100k_base encoding, which tiktoken may have to download on first use.
func NewCounter(unit Unit) (Counter, error) {
	switch unit {
	case Words:
		return wordCounter{}, nil
	case Characters:
		return charCounter{}, nil
	case Tokens:
		encoding, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cl100k_base encoding: %w", err)
		}
		return &tokenCounter{encoding: encoding}, nil
	default:
		return nil, fmt.Errorf("unknown unit %d", unit)
	}
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }
func (wordCounter) Name() string          { return "words" }

// charCounter counts runes, not bytes
type charCounter struct{}

func (charCounter) Count(text string) int { return utf8.RuneCountInString(text) }
func (charCounter) Name() string          { return "characters" }

type tokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex // the encoder caches internally
}

func (tc *tokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoding.Encode(text, nil, nil))
}

func (tc *tokenCounter) Name() string { return "tokens (cl100k_base)" }
