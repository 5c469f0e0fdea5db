package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockOpenAIServer creates a test server that mocks the chat completions endpoint.
type MockOpenAIServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
	// Requests counts calls per path.
	Requests map[string]int
}

// NewMockOpenAIServer creates a new mock OpenAI API server.
func NewMockOpenAIServer(t *testing.T) *MockOpenAIServer {
	t.Helper()
	m := &MockOpenAIServer{
		Handlers: make(map[string]http.HandlerFunc),
		Requests: make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Requests[r.URL.Path]++
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockCompletion adds a handler for /v1/chat/completions returning content.
func (m *MockOpenAIServer) MockCompletion(content string) {
	m.Handlers["/v1/chat/completions"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockCompletionError adds a handler returning an API error status.
func (m *MockOpenAIServer) MockCompletionError(status int, message string) {
	m.Handlers["/v1/chat/completions"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
			"error": map[string]string{"message": message},
		})
	}
}
