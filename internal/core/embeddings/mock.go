package embeddings

import "context"

// MockClient returns canned embeddings keyed by text, for tests.
type MockClient struct {
	ByText  map[string][]float32
	Default []float32
	Err     error
	Calls   int
}

// GetEmbedding returns the scripted embedding for text, or the default.
func (m *MockClient) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	m.Calls++

	if m.Err != nil {
		return nil, m.Err
	}

	if v, ok := m.ByText[text]; ok {
		return v, nil
	}

	return m.Default, nil
}
