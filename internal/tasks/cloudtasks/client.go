// Package cloudtasks implements the task queue interfaces on Google Cloud
// Tasks. Authentication uses Application Default Credentials.
package cloudtasks

import (
	"context"
	"encoding/base64"
	"fmt"

	gct "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/pagepulse/pagepulse/internal/tasks"
)

// Config locates the Cloud Tasks queue.
type Config struct {
	ProjectID  string
	LocationID string
	QueueID    string
}

// Client wraps the Cloud Tasks API as a tasks.Queue and tasks.Lister.
type Client struct {
	client    *gct.Client
	queuePath string
}

// New creates a Cloud Tasks client bound to one queue.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.LocationID == "" || cfg.QueueID == "" {
		return nil, fmt.Errorf("project, location and queue are all required")
	}
	client, err := gct.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create cloud tasks client: %w", err)
	}
	return &Client{
		client:    client,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", cfg.ProjectID, cfg.LocationID, cfg.QueueID),
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close cloud tasks client: %w", err)
	}
	return nil
}

// CreateTask submits one HTTP task to the queue and returns its name.
func (c *Client) CreateTask(ctx context.Context, req tasks.TaskRequest) (string, error) {
	body, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", fmt.Errorf("decode task body: %w", err)
	}
	method, err := httpMethod(req.Method)
	if err != nil {
		return "", err
	}
	task := &cloudtaskspb.Task{
		MessageType: &cloudtaskspb.Task_HttpRequest{
			HttpRequest: &cloudtaskspb.HttpRequest{
				Url:        req.URL,
				HttpMethod: method,
				Headers:    map[string]string{"Content-Type": req.ContentType},
				Body:       body,
			},
		},
	}
	if !req.ScheduleTime.IsZero() {
		task.ScheduleTime = timestamppb.New(req.ScheduleTime)
	}
	created, err := c.client.CreateTask(ctx, &cloudtaskspb.CreateTaskRequest{
		Parent: c.queuePath,
		Task:   task,
	})
	if err != nil {
		return "", fmt.Errorf("create cloud task: %w", err)
	}
	return created.GetName(), nil
}

// ListTasks returns one page of the queue's tasks.
func (c *Client) ListTasks(ctx context.Context, opts tasks.ListOptions) ([]tasks.TaskInfo, string, error) {
	it := c.client.ListTasks(ctx, &cloudtaskspb.ListTasksRequest{Parent: c.queuePath})
	pager := iterator.NewPager(it, int(opts.PageSize), opts.PageToken)

	var page []*cloudtaskspb.Task
	next, err := pager.NextPage(&page)
	if err != nil {
		return nil, "", fmt.Errorf("list cloud tasks: %w", err)
	}
	infos := make([]tasks.TaskInfo, 0, len(page))
	for _, task := range page {
		info := tasks.TaskInfo{
			Name:          task.GetName(),
			DispatchCount: int(task.GetDispatchCount()),
		}
		if ts := task.GetScheduleTime(); ts != nil {
			info.ScheduleTime = ts.AsTime()
		}
		if ts := task.GetCreateTime(); ts != nil {
			info.CreateTime = ts.AsTime()
		}
		infos = append(infos, info)
	}
	return infos, next, nil
}

func httpMethod(method string) (cloudtaskspb.HttpMethod, error) {
	switch method {
	case "POST":
		return cloudtaskspb.HttpMethod_POST, nil
	case "GET":
		return cloudtaskspb.HttpMethod_GET, nil
	case "PUT":
		return cloudtaskspb.HttpMethod_PUT, nil
	case "DELETE":
		return cloudtaskspb.HttpMethod_DELETE, nil
	default:
		return cloudtaskspb.HttpMethod_HTTP_METHOD_UNSPECIFIED, fmt.Errorf("unsupported http method %q", method)
	}
}
