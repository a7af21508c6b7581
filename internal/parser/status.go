package parser

import (
	"strings"
	"time"

	"clinic-schedule-ingest/internal/model"
)

// statusTable folds source vocabulary onto canonical workflow states. New
// synonyms are rows here, not branches anywhere else. Cancelled, Rescheduled
// and Confirmed are terminal pass-through states outside the normal flow.
var statusTable = map[string]string{
	"scheduled":   model.StatusScheduled,
	"confirmed":   model.StatusConfirmed,
	"arrived":     model.StatusArrived,
	"checked in":  model.StatusArrived,
	"checkedin":   model.StatusArrived,
	"roomed":      model.StatusApptPrep,
	"with doctor": model.StatusWithDoctor,
	"seen by md":  model.StatusSeenByMD,
	"seen-by-md":  model.StatusSeenByMD,
	"checked out": model.StatusCompleted,
	"checkedout":  model.StatusCompleted,
	"completed":   model.StatusCompleted,
	"cancelled":   model.StatusCancelled,
	"canceled":    model.StatusCancelled,
	"rescheduled": model.StatusRescheduled,
}

// checkInStatuses are the states that imply the patient is physically here.
var checkInStatuses = map[string]bool{
	model.StatusArrived:    true,
	model.StatusApptPrep:   true,
	model.StatusWithDoctor: true,
	model.StatusSeenByMD:   true,
}

// NormalizeStatus maps an arbitrary source status onto the canonical set.
// Matching is case- and whitespace-insensitive; unknown strings pass through
// unchanged so new source vocabulary degrades gracefully, and an empty status
// means the visit is still just on the books.
func NormalizeStatus(raw string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if folded == "" {
		return model.StatusScheduled
	}
	if canonical, ok := statusTable[folded]; ok {
		return canonical
	}
	return strings.TrimSpace(raw)
}

// applyStatus sets the canonical status plus its timestamp side effects:
// in-progress states stamp check-in, completion stamps completed.
func applyStatus(rec *model.AppointmentRecord, raw string, now time.Time) {
	rec.Status = NormalizeStatus(raw)
	ts := now.Format(time.RFC3339)
	if checkInStatuses[rec.Status] && rec.CheckInTime == "" {
		rec.CheckInTime = ts
	}
	if rec.Status == model.StatusCompleted && rec.CompletedTime == "" {
		rec.CompletedTime = ts
	}
}
