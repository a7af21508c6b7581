package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/parser"
)

// localFixture parses to exactly one record through the local pipeline.
const localFixture = `Dr. Lukner 8:00 AM Arrived JANE ROE 2/2/1970 (503) 100-2000 Aetna Visit $5.00`

func testOpts() parser.Options {
	return parser.Options{
		ReferenceDate: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Now:           func() time.Time { return time.Date(2026, 8, 28, 7, 0, 0, 0, time.UTC) },
	}
}

func TestRemoteParseSuccess(t *testing.T) {
	remoteRecords := []model.AppointmentRecord{{
		Name:            "REMOTE PATIENT",
		DateOfBirth:     "1990-01-01",
		AppointmentTime: "2026-08-28T10:00:00Z",
		Status:          model.StatusScheduled,
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req parseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			t.Errorf("bad request to remote: %v", err)
		}
		_ = json.NewEncoder(w).Encode(parseResponse{Appointments: remoteRecords})
	}))
	defer srv.Close()

	a := New(srv.URL, srv.Client(), nil)
	got := a.Parse(context.Background(), localFixture, testOpts())
	if len(got) != 1 || got[0].Name != "REMOTE PATIENT" {
		t.Fatalf("remote path not used: %+v", got)
	}
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}},
		{"schema mismatch", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"something":"else"}`))
		}},
		{"incomplete record", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"appointments":[{"name":""}]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := New(srv.URL, srv.Client(), nil)
			got := a.Parse(context.Background(), localFixture, testOpts())
			if len(got) != 1 || got[0].Name != "JANE ROE" {
				t.Fatalf("fallback did not run local pipeline: %+v", got)
			}
		})
	}
}

func TestNoEndpointGoesStraightToLocal(t *testing.T) {
	a := New("", nil, nil)
	got := a.Parse(context.Background(), localFixture, testOpts())
	if len(got) != 1 || got[0].Name != "JANE ROE" {
		t.Fatalf("local-only parse: %+v", got)
	}
}

func TestUnreachableEndpointFallsBack(t *testing.T) {
	a := New("http://127.0.0.1:1", &http.Client{Timeout: 200 * time.Millisecond}, nil)
	got := a.Parse(context.Background(), localFixture, testOpts())
	if len(got) != 1 || got[0].Name != "JANE ROE" {
		t.Fatalf("fallback after connection failure: %+v", got)
	}
}
