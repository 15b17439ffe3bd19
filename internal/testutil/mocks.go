// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"sync"
)

// MockLifecycle is a container lifecycle fake with scriptable outcomes.
type MockLifecycle struct {
	mu sync.Mutex

	// RestartErr is returned from RestartOrStart when set.
	RestartErr error
	// Running is the answer IsRunning gives; RunningErr overrides it.
	Running    bool
	RunningErr error

	Restarted []string
	Polled    []string
}

func (m *MockLifecycle) RestartOrStart(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Restarted = append(m.Restarted, name)
	return m.RestartErr
}

func (m *MockLifecycle) IsRunning(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Polled = append(m.Polled, name)
	if m.RunningErr != nil {
		return false, m.RunningErr
	}
	return m.Running, nil
}

// MockSynthesizer returns canned content per container name.
type MockSynthesizer struct {
	Content map[string]string
	Err     error

	Calls []string
}

func (m *MockSynthesizer) Synthesize(_ context.Context, containerName string) (string, error) {
	m.Calls = append(m.Calls, containerName)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Content[containerName], nil
}
