package hipchat

import (
	"errors"
	"math/rand"
	"strings"
)

// ErrNoPersonalToken means neither the pool nor the fallback token is set.
var ErrNoPersonalToken = errors.New("no personal api token configured")

// TokenPool spreads notification traffic over several personal tokens to
// stay under per-token rate limits.
type TokenPool struct {
	tokens   []string
	fallback string
	pick     func(n int) int
}

// NewTokenPool ignores blank entries in tokens.
func NewTokenPool(tokens []string, fallback string) *TokenPool {
	p := &TokenPool{fallback: strings.TrimSpace(fallback), pick: rand.Intn}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			p.tokens = append(p.tokens, t)
		}
	}
	return p
}

// Get returns a random pooled token, or the fallback when the pool is empty.
func (p *TokenPool) Get() (string, error) {
	if len(p.tokens) > 0 {
		return p.tokens[p.pick(len(p.tokens))], nil
	}
	if p.fallback != "" {
		return p.fallback, nil
	}
	return "", ErrNoPersonalToken
}

// Len is the number of pooled tokens, not counting the fallback.
func (p *TokenPool) Len() int {
	return len(p.tokens)
}
