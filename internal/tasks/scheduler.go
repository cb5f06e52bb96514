// Package tasks splits URL batches into chunked remote tasks and reports on
// the external queue.
package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// TaskRequest describes one task submitted to the queue. Body holds the
// base64-encoded JSON payload the worker will receive.
type TaskRequest struct {
	Method       string
	URL          string
	ContentType  string
	Body         string
	ScheduleTime time.Time
}

// Queue creates tasks on the external queue. The queue is the sole source of
// durability and retry; the scheduler keeps no local state.
type Queue interface {
	CreateTask(ctx context.Context, req TaskRequest) (string, error)
}

// ScheduledChunk echoes one created task back to the caller.
type ScheduledChunk struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// chunkPayload is what the callback endpoint receives per chunk.
type chunkPayload struct {
	URLs            []string `json:"urls"`
	BlockedRequests []string `json:"blockedRequests"`
}

// SchedulerConfig controls chunking and scheduling.
type SchedulerConfig struct {
	CallbackURL string
	ChunkSize   int
	Stagger     time.Duration
}

// Scheduler partitions URL batches and enqueues one delayed task per chunk.
type Scheduler struct {
	queue  Queue
	clock  audit.Clock
	cfg    SchedulerConfig
	logger *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(queue Queue, clock audit.Clock, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("callback url is required")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1
	}
	if cfg.Stagger <= 0 {
		cfg.Stagger = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: queue, clock: clock, cfg: cfg, logger: logger}, nil
}

// Schedule splits urls into contiguous chunks of at most chunkSize elements
// and creates one task per chunk, ramped so chunk i executes no earlier than
// stagger*(i+1) from now. Task creation is sequential; the first queue error
// aborts the loop and no later chunks are created. chunkSize <= 0 falls back
// to the configured default.
func (s *Scheduler) Schedule(ctx context.Context, urls []string, blockedPatterns []string, chunkSize int) ([]ScheduledChunk, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one url required")
	}
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}

	now := s.clock.Now()
	chunks := chunkURLs(urls, chunkSize)
	scheduled := make([]ScheduledChunk, 0, len(chunks))
	for i, chunk := range chunks {
		body, err := encodePayload(chunkPayload{URLs: chunk, BlockedRequests: blockedPatterns})
		if err != nil {
			return nil, fmt.Errorf("encode chunk %d payload: %w", i, err)
		}
		req := TaskRequest{
			Method:       "POST",
			URL:          s.cfg.CallbackURL,
			ContentType:  "application/json",
			Body:         body,
			ScheduleTime: now.Add(s.cfg.Stagger * time.Duration(i+1)),
		}
		name, err := s.queue.CreateTask(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("create task for chunk %d: %w", i, err)
		}
		s.logger.Debug("chunk scheduled",
			zap.String("task", name),
			zap.Int("chunk", i),
			zap.Int("urls", len(chunk)),
			zap.Time("execute_at", req.ScheduleTime),
		)
		scheduled = append(scheduled, ScheduledChunk{Name: name, URLs: chunk})
	}
	return scheduled, nil
}

// chunkURLs partitions urls into contiguous slices of at most size elements,
// preserving order within and across chunks.
func chunkURLs(urls []string, size int) [][]string {
	chunks := make([][]string, 0, (len(urls)+size-1)/size)
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		chunks = append(chunks, urls[start:end])
	}
	return chunks
}

func encodePayload(payload chunkPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
