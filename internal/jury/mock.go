package jury

import (
	"context"
	"sync"
)

// MockClient is a deterministic in-memory jury for tests and local
// development. It returns the configured scores and justification and records
// every request it sees.
type MockClient struct {
	Scores        []uint64
	Justification string
	Err           error

	mu       sync.Mutex
	requests []*Request
}

// NewMockClient creates a mock returning the given verdict.
func NewMockClient(scores []uint64, justification string) *MockClient {
	return &MockClient{Scores: scores, Justification: justification}
}

// RankAndJustify returns the canned verdict, truncating or padding the score
// vector to match the requested outcomes.
func (m *MockClient) RankAndJustify(_ context.Context, req *Request) (*Verdict, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	scores := make([]uint64, len(req.Outcomes))
	copy(scores, m.Scores)
	return &Verdict{Scores: scores, Justification: m.Justification}, nil
}

// Calls reports how many evaluations the mock served.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockClient) LastRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}
