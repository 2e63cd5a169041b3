package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// InputHash fingerprints the numeric inputs of an analysis so that reruns
// over identical data can be recognised.
type InputHash uint64

// String renders the hash as fixed-width hex.
func (h InputHash) String() string {
	s := strconv.FormatUint(uint64(h), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}

// ParseInputHash parses the hex form produced by String.
func ParseInputHash(s string) (InputHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid input hash %q: %w", s, err)
	}
	return InputHash(v), nil
}

// HashBuilder accumulates float slices and labels into an xxhash digest.
type HashBuilder struct {
	d   *xxhash.Digest
	buf [8]byte
}

func NewHashBuilder() *HashBuilder {
	return &HashBuilder{d: xxhash.New()}
}

// Floats writes the length followed by the IEEE-754 bits of every value.
func (b *HashBuilder) Floats(values []float64) *HashBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], uint64(len(values)))
	_, _ = b.d.Write(b.buf[:])
	for _, v := range values {
		binary.LittleEndian.PutUint64(b.buf[:], math.Float64bits(v))
		_, _ = b.d.Write(b.buf[:])
	}
	return b
}

func (b *HashBuilder) Float(v float64) *HashBuilder {
	binary.LittleEndian.PutUint64(b.buf[:], math.Float64bits(v))
	_, _ = b.d.Write(b.buf[:])
	return b
}

func (b *HashBuilder) String(s string) *HashBuilder {
	_, _ = b.d.WriteString(s)
	_, _ = b.d.Write([]byte{0})
	return b
}

func (b *HashBuilder) Sum() InputHash {
	return InputHash(b.d.Sum64())
}
