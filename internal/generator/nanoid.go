package generator

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	RoomIDSize     = 15
	RoomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// IDGenerator produces room identifiers.
type IDGenerator interface {
	Generate() (string, error)
}

// NanoIDGenerator generates NanoID identifiers with configurable size and alphabet.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

// NewNanoIDGenerator creates a new NanoIDGenerator.
// size must be between 1 and 256. alphabet must have at least 2 characters.
func NewNanoIDGenerator(size int, alphabet string) (*NanoIDGenerator, error) {
	if size < 1 || size > 256 {
		return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("nanoid alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return &NanoIDGenerator{
		size:     size,
		alphabet: alphabet,
	}, nil
}

// NewRoomIDGenerator returns the generator for 15-character alphanumeric room ids.
func NewRoomIDGenerator() *NanoIDGenerator {
	return &NanoIDGenerator{size: RoomIDSize, alphabet: RoomIDAlphabet}
}

// Generate returns a new id. Uniqueness is left to the primary key.
func (g *NanoIDGenerator) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate NanoID: %w", err)
	}
	return id, nil
}

// Validate reports whether id has the generator's length and alphabet.
func (g *NanoIDGenerator) Validate(id string) (bool, string) {
	if len(id) != g.size {
		return false, fmt.Sprintf("expected length %d, got %d", g.size, len(id))
	}
	for _, c := range id {
		if !strings.ContainsRune(g.alphabet, c) {
			return false, fmt.Sprintf("character '%c' not in alphabet", c)
		}
	}
	return true, ""
}

// ValidRoomID reports whether id looks like a room id.
func ValidRoomID(id string) bool {
	ok, _ := NewRoomIDGenerator().Validate(id)
	return ok
}
