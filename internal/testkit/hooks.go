package testkit

import (
	"context"
	"time"
)

// Endpoint names one route of the reference service
type Endpoint string

const (
	EndpointUpload           Endpoint = "upload"
	EndpointDownload         Endpoint = "download"
	EndpointEDA              Endpoint = "eda"
	EndpointFeatureSelection Endpoint = "feature-selection"
	EndpointVisualize        Endpoint = "visualize"
	EndpointAsk              Endpoint = "ask-ai"
)

// Hook changes how one endpoint answers. Zero fields are ignored.
type Hook struct {
	// Delay is slept before the request is handled
	Delay time.Duration
	// Gate, when set, blocks the request until it is closed or receives a value
	Gate chan struct{}
	// Status short-circuits the handler with this HTTP status and Body
	Status int
	Body   map[string]interface{}
	// ErrorText short-circuits with a 200 response carrying {"error": ErrorText}
	ErrorText string
}

// wait applies Delay and Gate, returning early if ctx ends
func (h Hook) wait(ctx context.Context) {
	if h.Delay > 0 {
		select {
		case <-time.After(h.Delay):
		case <-ctx.Done():
			return
		}
	}
	if h.Gate != nil {
		select {
		case <-h.Gate:
		case <-ctx.Done():
		}
	}
}

// SetHook installs a hook for an endpoint, replacing any previous one
func (s *Server) SetHook(endpoint Endpoint, hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[endpoint] = hook
}

// ClearHooks removes every installed hook
func (s *Server) ClearHooks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = make(map[Endpoint]Hook)
}

// Calls returns how many requests reached the endpoint
func (s *Server) Calls(endpoint Endpoint) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[endpoint]
}

func (s *Server) hookFor(endpoint Endpoint) (Hook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[endpoint]++
	h, ok := s.hooks[endpoint]
	return h, ok
}
