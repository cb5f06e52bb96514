package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// ServiceConfig controls the side-effect targets of a Service.
type ServiceConfig struct {
	ReportPrefix string
	Topic        string
}

// Service is the synchronous batch-audit entry point. It expands the mode,
// drives the Runner once per concrete mode, formats the accumulated results
// and applies the storage, archival, and notification side effects.
type Service struct {
	runner    *Runner
	formatter *Formatter
	store     ResultStore
	reports   ReportStore
	publisher Publisher
	idGen     IDGenerator
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService wires a Service. Store, reports, publisher and idGen may be nil;
// the corresponding side effect is then skipped.
func NewService(
	runner *Runner,
	formatter *Formatter,
	store ResultStore,
	reports ReportStore,
	publisher Publisher,
	idGen IDGenerator,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReportPrefix == "" {
		cfg.ReportPrefix = "reports"
	}
	return &Service{
		runner:    runner,
		formatter: formatter,
		store:     store,
		reports:   reports,
		publisher: publisher,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunBatch audits every URL in the request and returns the formatted records.
// Audit failures abort the batch and propagate; storage, archival and publish
// failures are logged and never surfaced to the caller.
func (s *Service) RunBatch(ctx context.Context, req BatchRequest) ([]Record, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeMobile
	}

	var records []Record
	var allRaw []RawResult
	for _, concrete := range mode.Expand() {
		raw, scores, err := s.runner.Run(ctx, req.URLs, req.BlockedRequests, concrete)
		if err != nil {
			return nil, err
		}
		extra := Extra{Mode: concrete}
		if len(req.BlockedRequests) > 0 {
			extra.BlockedPatterns = req.BlockedRequests
		}
		records = append(records, s.formatter.Format(raw, scores, extra)...)
		allRaw = append(allRaw, raw...)
	}

	batchID := s.newBatchID()
	if req.StoreData {
		s.storeRecords(ctx, records)
	}
	s.archiveReports(ctx, batchID, allRaw)
	s.publishCompletion(ctx, batchID, mode, req.URLs, len(records))

	return records, nil
}

func (s *Service) newBatchID() string {
	if s.idGen == nil {
		return ""
	}
	id, err := s.idGen.NewID()
	if err != nil {
		s.logger.Warn("batch id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// storeRecords is best-effort: a storage failure must not fail the batch.
func (s *Service) storeRecords(ctx context.Context, records []Record) {
	if s.store == nil || len(records) == 0 {
		return
	}
	if err := s.store.StoreRecords(ctx, records); err != nil {
		s.logger.Error("store audit records failed", zap.Int("records", len(records)), zap.Error(err))
	}
}

// archiveReports writes each raw result as a JSON blob, best-effort.
func (s *Service) archiveReports(ctx context.Context, batchID string, raw []RawResult) {
	if s.reports == nil || batchID == "" {
		return
	}
	for i, result := range raw {
		if result.Audits == nil {
			continue
		}
		data, err := json.Marshal(result.Audits)
		if err != nil {
			s.logger.Warn("marshal raw report failed", zap.String("url", result.URL), zap.Error(err))
			continue
		}
		object := fmt.Sprintf("%s/%s/%d.json", s.cfg.ReportPrefix, batchID, i)
		if _, err := s.reports.Save(ctx, object, "application/json", data); err != nil {
			s.logger.Warn("archive raw report failed", zap.String("object", object), zap.Error(err))
		}
	}
}

// completionEvent is the payload published after a successful batch.
type completionEvent struct {
	BatchID string   `json:"batch_id,omitempty"`
	Mode    string   `json:"mode"`
	URLs    []string `json:"urls"`
	Records int      `json:"records"`
}

func (s *Service) publishCompletion(ctx context.Context, batchID string, mode Mode, urls []string, records int) {
	if s.publisher == nil {
		return
	}
	event := completionEvent{BatchID: batchID, Mode: string(mode), URLs: urls, Records: records}
	if _, err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
		s.logger.Warn("publish batch completion failed", zap.Error(err))
	}
}
