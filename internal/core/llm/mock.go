package llm

import (
	"context"
	"sync"
)

// MockProvider is a scriptable provider for tests. Responses are returned in
// order; the last one repeats once the script is exhausted.
type MockProvider struct {
	mu        sync.Mutex
	tier      Tier
	responses []Response
	errs      []error
	calls     int
	Prompts   []string
}

// NewMockProvider creates a mock for the given tier.
func NewMockProvider(tier Tier) *MockProvider {
	return &MockProvider{tier: tier}
}

// Script appends a canned response (or error) to the mock's script.
func (m *MockProvider) Script(resp Response, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, err)

	return m
}

// ScriptText is shorthand for scripting a text-only successful response.
func (m *MockProvider) ScriptText(text string) *MockProvider {
	return m.Script(Response{Text: text, InputTokens: 100, OutputTokens: 50, CostUSD: 0.001, ModelID: "mock-" + string(m.tier)}, nil)
}

func (m *MockProvider) Tier() Tier { return m.tier }

func (m *MockProvider) IsAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.responses) > 0
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

func (m *MockProvider) Complete(_ context.Context, prompt string) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, prompt)

	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}

	m.calls++

	if idx < 0 {
		return Response{}, nil
	}

	return m.responses[idx], m.errs[idx]
}
