package llm

import "context"

// MockClient is a test double for the LLM Client interface.
// If Queue is non-empty, responses are popped from it in order; otherwise
// Response is returned for every call.
type MockClient struct {
	Response *Response
	Queue    []*Response
	Err      error
	Calls    []string // records prompts sent
}

// Complete records the call and returns the next mock response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (*Response, error) {
	m.Calls = append(m.Calls, prompt)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Queue) > 0 {
		next := m.Queue[0]
		m.Queue = m.Queue[1:]
		return next, nil
	}
	return m.Response, nil
}
