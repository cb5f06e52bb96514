// Package insights contains tests for the remote insights auditor.
package insights

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepulse/pagepulse/internal/audit"
)

const validBody = `{
	"lighthouseResult": {
		"audits": {
			"first-contentful-paint": {"numericValue": 1234.5, "score": 0.92},
			"server-response-time": {"numericValue": 210, "score": 1}
		},
		"categories": {"performance": {"score": 0.87}}
	}
}`

func TestAuditDecodesEnvelope(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"url":      r.URL.Query().Get("url"),
			"strategy": r.URL.Query().Get("strategy"),
			"category": r.URL.Query().Get("category"),
			"key":      r.URL.Query().Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(validBody))
	}))
	defer srv.Close()

	a := New(Config{Endpoint: srv.URL, APIKey: "secret"})
	outcome, err := a.Audit(context.Background(), "https://example.com", audit.ModeDesktop, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", gotQuery["url"])
	assert.Equal(t, "desktop", gotQuery["strategy"])
	assert.Equal(t, "performance", gotQuery["category"])
	assert.Equal(t, "secret", gotQuery["key"])

	assert.Equal(t, "https://example.com", outcome.Metrics.URL)
	assert.Equal(t, 0.87, outcome.Performance)
	assert.Equal(t, 1234.5, outcome.Metrics.Audits["first-contentful-paint"].NumericValue)
	assert.Equal(t, 0.92, outcome.Metrics.Audits["first-contentful-paint"].Score)
}

func TestAuditOmitsKeyWhenUnset(t *testing.T) {
	t.Parallel()

	var hadKey bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadKey = r.URL.Query().Has("key")
		_, _ = w.Write([]byte(validBody))
	}))
	defer srv.Close()

	a := New(Config{Endpoint: srv.URL})
	_, err := a.Audit(context.Background(), "https://example.com", audit.ModeMobile, nil)
	require.NoError(t, err)
	assert.False(t, hadKey)
}

func TestAuditMalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing audits", `{"lighthouseResult": {"categories": {"performance": {"score": 1}}}}`},
		{"missing category", `{"lighthouseResult": {"audits": {}}}`},
		{"api error", `{"error": {"message": "quota exceeded"}}`},
		{"not json", `<html>`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			a := New(Config{Endpoint: srv.URL})
			_, err := a.Audit(context.Background(), "https://example.com", audit.ModeMobile, nil)
			require.Error(t, err)

			var auditErr *audit.Error
			require.True(t, errors.As(err, &auditErr))
			assert.Equal(t, "https://example.com", auditErr.URL)
			assert.Equal(t, "insights", auditErr.Backend)
		})
	}
}

func TestAuditRejectsModeAll(t *testing.T) {
	t.Parallel()

	a := New(Config{Endpoint: "http://localhost:0"})
	_, err := a.Audit(context.Background(), "https://example.com", audit.ModeAll, nil)
	require.Error(t, err)
}
