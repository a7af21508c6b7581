package parser

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/model"
)

// Options is the caller-supplied bag for one parse call. The zero value is
// usable: today's date, an unassigned provider, format auto-detection and a
// disabled logger.
type Options struct {
	// ReferenceDate supplies the calendar date combined with per-block clock
	// times. Zero means today.
	ReferenceDate time.Time
	// DefaultProvider fills records whose block carries no resource name.
	DefaultProvider string
	// FormatHint skips detection when the caller already knows the layout.
	FormatHint Format
	// Logger receives per-item rejection reasons. Reasons only; field values
	// are PHI and never logged.
	Logger *zerolog.Logger
	// Now is the processing clock for status-derived timestamps. Tests pin it.
	Now func() time.Time
}

func (o Options) referenceDate() time.Time {
	if o.ReferenceDate.IsZero() {
		return time.Now()
	}
	return o.ReferenceDate
}

func (o Options) defaultProvider() string {
	if o.DefaultProvider == "" {
		return "Unassigned"
	}
	return o.DefaultProvider
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) logger() *zerolog.Logger {
	if o.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return o.Logger
}

// Parse turns raw pasted or exported schedule text into ordered appointment
// records. It never fails: malformed pieces are logged and dropped, and
// empty input yields an empty result.
func Parse(text string, opts Options) []model.AppointmentRecord {
	if strings.TrimSpace(text) == "" {
		return []model.AppointmentRecord{}
	}

	format := opts.FormatHint
	if format == FormatUnknown {
		format = Detect(text)
	}
	if format == FormatUnknown {
		// still worth a try: the multi-line path drops what it cannot read
		opts.logger().Info().Msg("schedule format ambiguous, attempting multi-line parse")
	}

	if format == FormatTabular {
		return parseTabular(text, opts)
	}
	return parseAdvanced(text, opts)
}

// parseAdvanced runs the multi-line path: regroup wrapped lines into blocks,
// then extract fields per block.
func parseAdvanced(text string, opts Options) []model.AppointmentRecord {
	blocks := extractBlocks(text)
	records := make([]model.AppointmentRecord, 0, len(blocks))
	for n, block := range blocks {
		rec, err := parseBlock(block, opts)
		if err != nil {
			opts.logger().Warn().
				Int("block", n+1).
				Str("reason", err.Error()).
				Msg("schedule block skipped")
			continue
		}
		records = append(records, rec)
	}
	return records
}
