package model

import "time"

// Canonical workflow statuses. Everything downstream of the parser only
// understands these; the status normalizer folds source vocabulary into them.
const (
	StatusScheduled   = "scheduled"
	StatusArrived     = "arrived"
	StatusApptPrep    = "appt-prep"
	StatusWithDoctor  = "With Doctor"
	StatusSeenByMD    = "seen-by-md"
	StatusCompleted   = "completed"
	StatusCancelled   = "Cancelled"
	StatusRescheduled = "Rescheduled"
	// Confirmed stays its own state rather than folding into scheduled.
	// Front desk treats a confirmed slot differently from a merely booked one.
	StatusConfirmed = "Confirmed"
)

// DefaultAppointmentType is used when the source text carries no visit type.
const DefaultAppointmentType = "Office Visit"

// AppointmentRecord is one parsed appointment. DateOfBirth and
// AppointmentTime are always valid ISO values; a block that cannot produce
// them is rejected by the parser instead of emitted with sentinels.
type AppointmentRecord struct {
	Name            string `json:"name"`
	DateOfBirth     string `json:"dateOfBirth"`     // YYYY-MM-DD
	AppointmentTime string `json:"appointmentTime"` // RFC 3339
	AppointmentType string `json:"appointmentType"`
	ChiefComplaint  string `json:"chiefComplaint,omitempty"`
	Provider        string `json:"provider"`
	Status          string `json:"status"`
	Phone           string `json:"phone,omitempty"`
	Insurance       string `json:"insurance,omitempty"`
	Room            string `json:"room,omitempty"`
	Balance         string `json:"balance,omitempty"`
	MemberID        string `json:"memberId,omitempty"`
	CheckInTime     string `json:"checkInTime,omitempty"`
	CompletedTime   string `json:"completedTime,omitempty"`
}

// ParseMetadata travels with a persisted record set.
type ParseMetadata struct {
	SourceFormat string    `json:"sourceFormat"`
	ImportedAt   time.Time `json:"importedAt"`
	RecordCount  int       `json:"recordCount"`
}

// ScheduleSnapshot is what a persisted parse result looks like in storage:
// the record list plus import metadata.
type ScheduleSnapshot struct {
	Records  []AppointmentRecord `json:"records"`
	Metadata ParseMetadata       `json:"metadata"`
}

// Audit actions recorded by the secure storage engine.
const (
	AuditStore    = "STORE"
	AuditRetrieve = "RETRIEVE"
	AuditDelete   = "DELETE"
	AuditExpire   = "EXPIRE"
	AuditClear    = "CLEAR"
)

// AuditEntry is one access event against a storage instance. Key is redacted
// before it gets here; payload content never appears in an entry.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Key       string    `json:"key"`
	UserID    string    `json:"userId,omitempty"`
	Success   bool      `json:"success"`
}

// StoredItem is one encrypted payload held by a storage instance.
type StoredItem struct {
	EncryptedPayload string    `json:"encryptedPayload"`
	StoredAt         time.Time `json:"storedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	AccessCount      int       `json:"accessCount"`
	LastAccessedAt   time.Time `json:"lastAccessedAt"`
}

// ExportRecord is one keyed entry inside an export document. Data holds the
// record payload with any sensitive fields replaced by ciphertext strings.
type ExportRecord struct {
	Data     map[string]any  `json:"data"`
	Metadata *ExportItemMeta `json:"metadata,omitempty"`
}

// ExportItemMeta is per-record storage metadata, omitted entirely when the
// caller exports without metadata.
type ExportItemMeta struct {
	StoredAt    time.Time `json:"storedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int       `json:"accessCount"`
}

// ExportDocument is the transportable envelope. Checksum is a SHA-256 hex
// digest over the canonical JSON of Data as written, so any post-export
// mutation of the data section is detectable before decryption is attempted.
type ExportDocument struct {
	Version         string                  `json:"version"`
	ExportedAt      time.Time               `json:"exportedAt"`
	Data            map[string]ExportRecord `json:"data"`
	Checksum        string                  `json:"checksum"`
	EncryptedFields []string                `json:"encryptedFields"`
	KeySalt         string                  `json:"keySalt"`
	Verifier        string                  `json:"verifier"`
}

// ImportResult reports the outcome of an import call. Partial success is
// valid for per-key conflicts and per-record validation; checksum and
// password failures are all-or-nothing.
type ImportResult struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}
