package audit

import "fmt"

// Error wraps a backend failure with the URL that triggered it.
type Error struct {
	URL     string
	Backend string
	Err     error
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s audit failed for %s: %v", e.Backend, e.URL, e.Err)
	}
	return fmt.Sprintf("audit failed for %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
