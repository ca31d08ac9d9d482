package detection

import (
	"sync"

	"github.com/teslashibe/go-pathsense/pkg/frame"
)

// MockBackend implements Backend for testing.
type MockBackend struct {
	// InferFunc is called when Infer is invoked.
	// If nil, returns Candidates.
	InferFunc func(f frame.Frame) ([]Candidate, error)

	// Candidates is returned when InferFunc is nil.
	Candidates []Candidate

	mu     sync.Mutex
	calls  int
	closed bool
}

// Infer calls InferFunc and records the call.
func (m *MockBackend) Infer(f frame.Frame) ([]Candidate, error) {
	m.mu.Lock()
	m.calls++
	fn := m.InferFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(f)
	}
	return m.Candidates, nil
}

// Close marks the backend closed.
func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Infer ran.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockBackend) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Backend = (*MockBackend)(nil)
