package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/sanitize"
)

var (
	errNoTime    = errors.New("no appointment time token")
	errBadTime   = errors.New("appointment time out of range")
	errNoDOB     = errors.New("no date of birth token")
	errBadDOB    = errors.New("date of birth is not a real calendar date")
	errEmptyName = errors.New("empty patient name")
	errNotEnough = errors.New("not enough data")
)

// minFieldCount is the minimum number of extractable tokens a block needs
// before it is trusted as an appointment.
const minFieldCount = 4

// Token regexes tolerate a single hard wrap inside the token: the block
// joiner turns a wrap into one space, so "8:0\n0 AM" arrives as "8:0 0 AM"
// and "(503) 420-\n6404" as "(503) 420- 6404".
var (
	reTime    = regexp.MustCompile(`(?i)\b(\d{1,2})\s*:\s*(\d\s?\d)\s*(AM|PM)\b`)
	reDOB     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4}|\d{2})\b`)
	rePhone   = regexp.MustCompile(`\(\s*(\d{3})\s*\)\s*(\d\s?\d\s?\d)\s*-?\s*(\d(?:\s?\d){3})`)
	reRoom    = regexp.MustCompile(`(?i)\bROOM\s*(\d+)\b`)
	reStatus  = regexp.MustCompile(`(?i)\b(checked\s*out|seen\s*by\s*md|with\s*doctor|rescheduled|cancelled|canceled|confirmed|scheduled|arrived|roomed|checked\s*in)\b`)
	reBalance = regexp.MustCompile(`\$\s*(\d+(?:[.,]\d{2})?)\s*$`)
	reMember  = regexp.MustCompile(`(?i)\bmember\s*id\s*:?\s*`)
	reDigits  = regexp.MustCompile(`\s+`)
)

// insurerVocab holds lowercase tokens that may appear in a payer name. The
// insurance segment is the run of leading vocab tokens in the remainder text.
var insurerVocab = map[string]bool{
	"aetna": true, "cigna": true, "united": true, "unitedhealthcare": true,
	"uhc": true, "bcbs": true, "blue": true, "cross": true, "shield": true,
	"medicare": true, "medicaid": true, "humana": true, "kaiser": true,
	"regence": true, "providence": true, "moda": true, "tricare": true,
	"anthem": true, "molina": true, "self": true, "pay": true, "self-pay": true,
	"selfpay": true, "ppo": true, "hmo": true, "epo": true, "pos": true,
	"advantage": true, "health": true, "plan": true, "gold": true,
	"silver": true, "bronze": true,
}

// parseBlock extracts one appointment from a rejoined logical block. Any
// returned error means the block is skipped; the batch is unaffected.
func parseBlock(block string, opts Options) (model.AppointmentRecord, error) {
	text := sanitize.Field(block)
	var rec model.AppointmentRecord
	fields := 0

	// time token anchors everything after it
	tm := reTime.FindStringSubmatchIndex(text)
	if tm == nil {
		return rec, errNoTime
	}
	hour, _ := strconv.Atoi(text[tm[2]:tm[3]])
	minute, _ := strconv.Atoi(stripSpaces(text[tm[4]:tm[5]]))
	meridiem := strings.ToUpper(text[tm[6]:tm[7]])
	if hour < 1 || hour > 12 || minute > 59 {
		return rec, errBadTime
	}
	rec.AppointmentTime = combineTime(opts.referenceDate(), hour, minute, meridiem)
	fields++

	// status token from the fixed vocabulary, searched after the time
	tail := text[tm[1]:]
	nameStart := 0
	rawStatus := ""
	if sm := reStatus.FindStringIndex(tail); sm != nil {
		rawStatus = tail[sm[0]:sm[1]]
		nameStart = sm[1]
		fields++
	}

	// date of birth bounds the patient name on the right
	dm := reDOB.FindStringSubmatchIndex(tail[nameStart:])
	if dm == nil {
		return rec, errNoDOB
	}
	dob, err := parseDOB(
		tail[nameStart:][dm[2]:dm[3]],
		tail[nameStart:][dm[4]:dm[5]],
		tail[nameStart:][dm[6]:dm[7]],
	)
	if err != nil {
		return rec, err
	}
	rec.DateOfBirth = dob
	fields++

	rec.Name = strings.TrimSpace(tail[nameStart:][:dm[0]])
	if rec.Name == "" {
		return rec, errEmptyName
	}

	// provider and room sit before the time token
	head := strings.TrimSpace(text[:tm[0]])
	if rm := reRoom.FindStringSubmatchIndex(head); rm != nil {
		rec.Room = head[rm[2]:rm[3]]
		head = strings.TrimSpace(head[:rm[0]] + head[rm[1]:])
		fields++
	}
	rec.Provider = head
	if rec.Provider == "" {
		rec.Provider = opts.defaultProvider()
	}

	// remainder past the DOB carries phone, insurance, member id, notes, balance
	rest := strings.TrimSpace(tail[nameStart:][dm[1]:])
	if pm := rePhone.FindStringSubmatchIndex(rest); pm != nil {
		rec.Phone = fmt.Sprintf("(%s) %s-%s",
			rest[pm[2]:pm[3]],
			stripSpaces(rest[pm[4]:pm[5]]),
			stripSpaces(rest[pm[6]:pm[7]]))
		rest = strings.TrimSpace(rest[:pm[0]] + " " + rest[pm[1]:])
		fields++
	}
	if bm := reBalance.FindStringSubmatchIndex(rest); bm != nil {
		rec.Balance = "$" + stripSpaces(rest[bm[2]:bm[3]])
		rest = strings.TrimSpace(rest[:bm[0]])
		fields++
	}
	if mm := reMember.FindStringIndex(rest); mm != nil {
		id, consumed := takeMemberID(rest[mm[1]:])
		rec.MemberID = id
		rest = strings.TrimSpace(rest[:mm[0]] + " " + rest[mm[1]+consumed:])
		if id != "" {
			fields++
		}
	}
	if ins, leftover := takeInsurance(rest); ins != "" {
		rec.Insurance = ins
		rest = leftover
		fields++
	}
	if rest != "" && rest != "-" {
		rec.ChiefComplaint = rest
		fields++
	}

	if fields < minFieldCount {
		return rec, errNotEnough
	}

	rec.AppointmentType = model.DefaultAppointmentType
	applyStatus(&rec, rawStatus, opts.now())
	return rec, nil
}

// takeMemberID reads the id tokens that follow a "Member ID:" label. A hard
// wrap can split the id, so a following token is absorbed while it still
// carries a digit.
func takeMemberID(s string) (id string, consumed int) {
	toks := strings.Fields(s)
	if len(toks) == 0 {
		return "", 0
	}
	id = toks[0]
	consumed = strings.Index(s, toks[0]) + len(toks[0])
	for _, tok := range toks[1:] {
		if !strings.ContainsAny(tok, "0123456789") {
			break
		}
		idx := strings.Index(s[consumed:], tok)
		consumed += idx + len(tok)
		id += tok
	}
	return id, consumed
}

// takeInsurance pulls the run of leading payer-vocabulary tokens off the
// remainder; whatever is left is the chief complaint.
func takeInsurance(s string) (insurance, leftover string) {
	toks := strings.Fields(s)
	i := 0
	for i < len(toks) && insurerVocab[strings.ToLower(toks[i])] {
		i++
	}
	if i == 0 {
		return "", s
	}
	return strings.Join(toks[:i], " "), strings.Join(toks[i:], " ")
}

func parseDOB(mStr, dStr, yStr string) (string, error) {
	m, _ := strconv.Atoi(mStr)
	d, _ := strconv.Atoi(dStr)
	y, _ := strconv.Atoi(yStr)
	if len(yStr) == 2 {
		// two-digit years pivot at the current year
		if y <= time.Now().Year()%100 {
			y += 2000
		} else {
			y += 1900
		}
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", errBadDOB
	}
	return t.Format("2006-01-02"), nil
}

func combineTime(ref time.Time, hour, minute int, meridiem string) string {
	if meridiem == "PM" && hour != 12 {
		hour += 12
	}
	if meridiem == "AM" && hour == 12 {
		hour = 0
	}
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	return t.Format(time.RFC3339)
}

func stripSpaces(s string) string {
	return reDigits.ReplaceAllString(s, "")
}
