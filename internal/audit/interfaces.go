package audit

import "context"

// Auditor runs one performance audit against a single URL.
// Implementations must tag the returned RawResult with the source URL and
// report failures as *Error.
type Auditor interface {
	Audit(ctx context.Context, url string, mode Mode, blockedPatterns []string) (Outcome, error)
}

// ResultStore persists formatted records into the analytical table.
type ResultStore interface {
	StoreRecords(ctx context.Context, records []Record) error
}

// ReportStore archives raw audit output and returns a URI.
type ReportStore interface {
	Save(ctx context.Context, objectName string, contentType string, data []byte) (string, error)
}

// Publisher pushes batch-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator produces batch IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
