package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if watchSweepsTotal == nil || watchSitesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveSiteVisit("https://test.com/page", "changed")
	if val := testutil.ToFloat64(watchSitesTotal.WithLabelValues("test.com", "changed")); val != 1 {
		t.Errorf("Expected watchSitesTotal to be 1, got %f", val)
	}
}

func TestObserveDocumentsFound(t *testing.T) {
	Init()

	ObserveDocumentsFound("https://docs.test.com", 3)
	ObserveDocumentsFound("https://docs.test.com", 0)
	if val := testutil.ToFloat64(watchDocumentsFoundTotal.WithLabelValues("docs.test.com")); val != 3 {
		t.Errorf("Expected watchDocumentsFoundTotal to be 3, got %f", val)
	}
}

func TestObserveSweep(t *testing.T) {
	Init()

	ObserveSweep("ok", 2*time.Second)
	if val := testutil.ToFloat64(watchSweepsTotal.WithLabelValues("ok")); val != 1 {
		t.Errorf("Expected watchSweepsTotal to be 1, got %f", val)
	}
}
