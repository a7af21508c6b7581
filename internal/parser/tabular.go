package parser

import (
	"strings"

	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/sanitize"
)

// columnAliases maps normalized header names onto record fields.
var columnAliases = map[string]string{
	"name": "name", "patient": "name", "patient name": "name",
	"dob": "dob", "date of birth": "dob", "birth date": "dob",
	"time": "time", "appt time": "time", "appointment time": "time",
	"status": "status",
	"provider": "provider", "resource": "provider", "doctor": "provider",
	"phone": "phone", "contact": "phone", "phone number": "phone",
	"insurance": "insurance", "payer": "insurance",
	"room": "room",
	"reason": "complaint", "notes": "complaint", "chief complaint": "complaint",
	"complaint": "complaint",
	"balance": "balance",
	"member id": "memberid", "memberid": "memberid",
	"type": "type", "visit type": "type", "appointment type": "type",
}

// parseTabular handles the tab-separated export: a header row naming the
// columns, then one appointment per line. Malformed rows are logged and
// skipped like malformed blocks.
func parseTabular(text string, opts Options) []model.AppointmentRecord {
	lines := nonEmptyLines(text)
	if len(lines) < 2 {
		return nil
	}

	cols := make(map[int]string)
	for i, h := range strings.Split(lines[0], "\t") {
		key := strings.Join(strings.Fields(strings.ToLower(h)), " ")
		if field, ok := columnAliases[key]; ok {
			cols[i] = field
		}
	}

	records := make([]model.AppointmentRecord, 0, len(lines)-1)
	for n, line := range lines[1:] {
		rec, err := parseRow(line, cols, opts)
		if err != nil {
			opts.logger().Warn().
				Int("row", n+1).
				Str("reason", err.Error()).
				Msg("schedule row skipped")
			continue
		}
		records = append(records, rec)
	}
	return records
}

func parseRow(line string, cols map[int]string, opts Options) (model.AppointmentRecord, error) {
	var rec model.AppointmentRecord
	fields := 0
	rawStatus := ""

	for i, cell := range strings.Split(line, "\t") {
		value := sanitize.Field(cell)
		if value == "" {
			continue
		}
		switch cols[i] {
		case "name":
			rec.Name = value
			fields++
		case "dob":
			dm := reDOB.FindStringSubmatch(value)
			if dm == nil {
				return rec, errNoDOB
			}
			dob, err := parseDOB(dm[1], dm[2], dm[3])
			if err != nil {
				return rec, err
			}
			rec.DateOfBirth = dob
			fields++
		case "time":
			tm := reTime.FindStringSubmatch(value)
			if tm == nil {
				return rec, errNoTime
			}
			hour := atoiSafe(tm[1])
			minute := atoiSafe(stripSpaces(tm[2]))
			if hour < 1 || hour > 12 || minute > 59 {
				return rec, errBadTime
			}
			rec.AppointmentTime = combineTime(opts.referenceDate(), hour, minute, strings.ToUpper(tm[3]))
			fields++
		case "status":
			rawStatus = value
			fields++
		case "provider":
			rec.Provider = value
		case "phone":
			if pm := rePhone.FindStringSubmatch(value); pm != nil {
				rec.Phone = "(" + pm[1] + ") " + stripSpaces(pm[2]) + "-" + stripSpaces(pm[3])
				fields++
			}
		case "insurance":
			rec.Insurance = value
		case "room":
			rec.Room = value
		case "complaint":
			if value != "-" {
				rec.ChiefComplaint = value
			}
		case "balance":
			rec.Balance = value
		case "memberid":
			rec.MemberID = value
		case "type":
			rec.AppointmentType = value
		}
	}

	if rec.Name == "" {
		return rec, errEmptyName
	}
	if rec.DateOfBirth == "" {
		return rec, errNoDOB
	}
	if rec.AppointmentTime == "" {
		return rec, errNoTime
	}
	if fields < minFieldCount {
		return rec, errNotEnough
	}
	if rec.Provider == "" {
		rec.Provider = opts.defaultProvider()
	}
	if rec.AppointmentType == "" {
		rec.AppointmentType = model.DefaultAppointmentType
	}
	applyStatus(&rec, rawStatus, opts.now())
	return rec, nil
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
