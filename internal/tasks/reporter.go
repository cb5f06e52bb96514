package tasks

import (
	"context"
	"fmt"
	"time"
)

// TaskInfo is the queue-facing task metadata the reporter consumes.
type TaskInfo struct {
	Name          string
	ScheduleTime  time.Time
	CreateTime    time.Time
	DispatchCount int
}

// ListOptions controls queue pagination.
type ListOptions struct {
	PageSize  int32
	PageToken string
}

// Lister reads the queue's currently active tasks.
type Lister interface {
	ListTasks(ctx context.Context, opts ListOptions) ([]TaskInfo, string, error)
}

// ActiveTask is the caller-facing shape of one queued task. Queue-internal
// fields are dropped; only identifiers and schedule times survive.
type ActiveTask struct {
	Name          string    `json:"name"`
	ScheduleTime  time.Time `json:"scheduleTime"`
	CreateTime    time.Time `json:"createTime"`
	DispatchCount int       `json:"dispatchCount"`
}

// ActiveTasks is the reporter's full response.
type ActiveTasks struct {
	Tasks         []ActiveTask `json:"tasks"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Reporter reshapes the queue's task list for API callers. Read-only.
type Reporter struct {
	lister Lister
}

// NewReporter constructs a Reporter.
func NewReporter(lister Lister) (*Reporter, error) {
	if lister == nil {
		return nil, fmt.Errorf("lister is required")
	}
	return &Reporter{lister: lister}, nil
}

// ListActive returns the queue's active tasks in caller-facing form.
func (r *Reporter) ListActive(ctx context.Context, pageSize int32, pageToken string) (ActiveTasks, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	infos, next, err := r.lister.ListTasks(ctx, ListOptions{PageSize: pageSize, PageToken: pageToken})
	if err != nil {
		return ActiveTasks{}, fmt.Errorf("list tasks: %w", err)
	}
	out := ActiveTasks{Tasks: make([]ActiveTask, 0, len(infos)), NextPageToken: next}
	for _, info := range infos {
		out.Tasks = append(out.Tasks, ActiveTask{
			Name:          info.Name,
			ScheduleTime:  info.ScheduleTime,
			CreateTime:    info.CreateTime,
			DispatchCount: info.DispatchCount,
		})
	}
	return out, nil
}
