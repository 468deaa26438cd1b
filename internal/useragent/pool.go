// Package useragent rotates browser User-Agent strings so repeated
// requests do not present an identical fingerprint.
package useragent

import (
	"math/rand"
	"sync"
	"time"
)

// Pool hands out User-Agent strings at random.
type Pool struct {
	mu     sync.Mutex
	rng    *rand.Rand
	agents []string
}

// NewPool returns a pool with a small set of current desktop agents.
// In production these could be loaded from config.
func NewPool() *Pool {
	return &Pool{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		agents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	}
}

// Random returns one agent string from the pool.
func (p *Pool) Random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}
