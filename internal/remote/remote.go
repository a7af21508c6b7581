// Package remote delegates schedule parsing to an external service and falls
// back to the local pipeline on any failure. One attempt, one fallback, no
// retry storms.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/parser"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

// Adapter calls the remote parsing endpoint. The zero endpoint means
// local-only.
type Adapter struct {
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

// New builds an adapter for endpoint. A nil client gets a sane timeout.
func New(endpoint string, client *http.Client, logger *zerolog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Adapter{endpoint: endpoint, client: client, log: log}
}

type parseRequest struct {
	Text          string `json:"text"`
	ReferenceDate string `json:"referenceDate"`
}

type parseResponse struct {
	Appointments []model.AppointmentRecord `json:"appointments"`
}

// Parse tries the remote service once and runs the local pipeline on any
// failure. Callers cannot tell which path served them.
func (a *Adapter) Parse(ctx context.Context, text string, opts parser.Options) []model.AppointmentRecord {
	if a.endpoint != "" {
		records, err := a.parseRemote(ctx, text, opts)
		if err == nil {
			return records
		}
		a.log.Warn().Err(err).Msg("remote parse failed, falling back to local pipeline")
	}
	return parser.Parse(text, opts)
}

func (a *Adapter) parseRemote(ctx context.Context, text string, opts parser.Options) ([]model.AppointmentRecord, error) {
	ref := opts.ReferenceDate
	if ref.IsZero() {
		ref = time.Now()
	}
	body, err := json.Marshal(parseRequest{
		Text:          text,
		ReferenceDate: ref.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote parse status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	var parsed parseResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("remote parse response: %w", err)
	}
	if parsed.Appointments == nil {
		return nil, fmt.Errorf("remote parse response missing appointments")
	}

	// remote records still go through local validation of the invariant
	// fields; a schema-mismatched response is a fallback trigger
	for _, rec := range parsed.Appointments {
		if rec.Name == "" || rec.DateOfBirth == "" || rec.AppointmentTime == "" {
			return nil, fmt.Errorf("remote parse returned an incomplete record")
		}
	}
	return parsed.Appointments, nil
}
