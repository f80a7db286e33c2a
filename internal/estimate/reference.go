package estimate

import (
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceSuffix   = 8
	// largest multiple of 36 below 256; bytes at or above it are redrawn so
	// every symbol is equally likely
	referenceByteLimit = 252
)

// ReferenceGenerator produces reference numbers shaped
// PREFIX-<base36 unix millis>-<8 random base36 chars>, all upper case.
type ReferenceGenerator struct {
	Prefix string
	Now    func() time.Time
	Random io.Reader
}

// NewReferenceGenerator returns a generator backed by crypto/rand.
func NewReferenceGenerator(prefix string) ReferenceGenerator {
	return ReferenceGenerator{Prefix: strings.ToUpper(strings.TrimSpace(prefix)), Now: time.Now, Random: rand.Reader}
}

// Next returns a fresh candidate reference number.
func (g ReferenceGenerator) Next() (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	random := g.Random
	if random == nil {
		random = rand.Reader
	}
	suffix, err := randomBase36(random, referenceSuffix)
	if err != nil {
		return "", fmt.Errorf("reference suffix: %w", err)
	}
	stamp := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))
	if g.Prefix == "" {
		return stamp + "-" + suffix, nil
	}
	return g.Prefix + "-" + stamp + "-" + suffix, nil
}

func randomBase36(r io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= referenceByteLimit {
				continue
			}
			out = append(out, referenceAlphabet[int(b)%len(referenceAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
