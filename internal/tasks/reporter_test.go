package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	infos    []TaskInfo
	next     string
	err      error
	lastOpts ListOptions
}

func (l *stubLister) ListTasks(_ context.Context, opts ListOptions) ([]TaskInfo, string, error) {
	l.lastOpts = opts
	if l.err != nil {
		return nil, "", l.err
	}
	return l.infos, l.next, nil
}

func TestListActiveReshapesTasks(t *testing.T) {
	t.Parallel()

	sched := time.Unix(1700000100, 0).UTC()
	created := time.Unix(1700000000, 0).UTC()
	lister := &stubLister{
		infos: []TaskInfo{{Name: "tasks/1", ScheduleTime: sched, CreateTime: created, DispatchCount: 2}},
		next:  "page-2",
	}
	reporter, err := NewReporter(lister)
	require.NoError(t, err)

	out, err := reporter.ListActive(context.Background(), 50, "page-1")
	require.NoError(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "tasks/1", out.Tasks[0].Name)
	assert.Equal(t, sched, out.Tasks[0].ScheduleTime)
	assert.Equal(t, created, out.Tasks[0].CreateTime)
	assert.Equal(t, 2, out.Tasks[0].DispatchCount)
	assert.Equal(t, "page-2", out.NextPageToken)
	assert.Equal(t, ListOptions{PageSize: 50, PageToken: "page-1"}, lister.lastOpts)
}

func TestListActiveClampsPageSize(t *testing.T) {
	t.Parallel()

	lister := &stubLister{}
	reporter, err := NewReporter(lister)
	require.NoError(t, err)

	_, err = reporter.ListActive(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Equal(t, int32(defaultPageSize), lister.lastOpts.PageSize)

	_, err = reporter.ListActive(context.Background(), 5000, "")
	require.NoError(t, err)
	assert.Equal(t, int32(maxPageSize), lister.lastOpts.PageSize)
}

func TestListActiveWrapsListerErrors(t *testing.T) {
	t.Parallel()

	reporter, err := NewReporter(&stubLister{err: errors.New("queue down")})
	require.NoError(t, err)

	_, err = reporter.ListActive(context.Background(), 10, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list tasks")
}

func TestDisabledQueueFailsEverything(t *testing.T) {
	t.Parallel()

	var d Disabled
	_, err := d.CreateTask(context.Background(), TaskRequest{})
	require.Error(t, err)
	_, _, err = d.ListTasks(context.Background(), ListOptions{})
	require.Error(t, err)
}
