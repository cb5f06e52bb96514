package tasks

import (
	"context"
	"fmt"
)

// Disabled stands in for the queue when no task backend is configured.
// Every operation fails, which surfaces to API callers as a 500.
type Disabled struct{}

// CreateTask always fails.
func (Disabled) CreateTask(_ context.Context, _ TaskRequest) (string, error) {
	return "", fmt.Errorf("task queue is not configured")
}

// ListTasks always fails.
func (Disabled) ListTasks(_ context.Context, _ ListOptions) ([]TaskInfo, string, error) {
	return nil, "", fmt.Errorf("task queue is not configured")
}
