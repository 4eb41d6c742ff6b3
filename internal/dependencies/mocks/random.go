package mocks

import (
	"sync"

	"github.com/mcoot/tictactoe-live/internal/dependencies/random"
)

// MockRandom returns queued values, falling back to real randomness when a queue is empty
type MockRandom struct {
	mu       sync.Mutex
	ints     []int
	strings  []string
	fallback *random.CryptoRandom
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{fallback: random.New()}
}

// QueueInt adds values to the Intn result queue
func (r *MockRandom) QueueInt(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = append(r.ints, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}

func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return r.fallback.Intn(n)
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v
}

// String pops the next queued string; unqueued calls still produce unique room codes
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) == 0 {
		return r.fallback.String(length, alphabet)
	}
	v := r.strings[0]
	r.strings = r.strings[1:]
	return v
}

func (r *MockRandom) Bytes(n int) []byte {
	return r.fallback.Bytes(n)
}
