// Package securestore holds keyed records encrypted at rest, audits every
// access, and expires items after a configurable window. One Engine instance
// owns its map and its sweeper; construct it, use it, Destroy it.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/model"
)

const (
	// DefaultTTL is how long an item lives unless the config overrides it.
	DefaultTTL = 8 * time.Hour
	// defaultSweepInterval drives the background expiration sweep.
	defaultSweepInterval = time.Minute
	// defaultWarnThreshold flags runaway growth in HealthCheck.
	defaultWarnThreshold = 1000
)

// Config tunes one Engine instance. The zero value gives a random
// per-instance key, the default TTL and sweep cadence.
type Config struct {
	// Passphrase derives the at-rest key; empty means a random instance key.
	Passphrase string
	// DefaultTTL is applied to every stored item.
	DefaultTTL time.Duration
	// SweepInterval is the cadence of the background expiration sweep.
	SweepInterval time.Duration
	// HealthWarnThreshold is the item count at which HealthCheck degrades.
	HealthWarnThreshold int
	Logger              *zerolog.Logger
}

// Engine is the secure storage instance. All operations are safe for
// concurrent use; expiration is atomic with respect to retrieval.
type Engine struct {
	mu        sync.Mutex
	key       []byte
	items     map[string]*model.StoredItem
	audit     []model.AuditEntry
	ttl       time.Duration
	warnAt    int
	log       zerolog.Logger
	stop      chan struct{}
	done      chan struct{}
	destroyed bool
	createdAt time.Time
}

// Stats is a point-in-time operational snapshot.
type Stats struct {
	ItemCount      int       `json:"itemCount"`
	TotalAccesses  int       `json:"totalAccesses"`
	AuditEntries   int       `json:"auditEntries"`
	CreatedAt      time.Time `json:"createdAt"`
	OldestStoredAt time.Time `json:"oldestStoredAt,omitempty"`
}

// Health is the HealthCheck report.
type Health struct {
	Status    string `json:"status"` // healthy | warning
	ItemCount int    `json:"itemCount"`
	Threshold int    `json:"threshold"`
}

// New builds a running Engine. The caller owns it and must call Destroy.
func New(cfg Config) (*Engine, error) {
	key := make([]byte, keyLen)
	if cfg.Passphrase != "" {
		salt, err := NewSalt()
		if err != nil {
			return nil, err
		}
		key = DeriveKey(cfg.Passphrase, salt)
	} else if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = defaultSweepInterval
	}
	warnAt := cfg.HealthWarnThreshold
	if warnAt <= 0 {
		warnAt = defaultWarnThreshold
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	e := &Engine{
		key:       key,
		items:     make(map[string]*model.StoredItem),
		ttl:       ttl,
		warnAt:    warnAt,
		log:       logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	go e.sweeper(sweep)
	return e, nil
}

// Store serializes, encrypts and keeps value under key. False means the
// engine is destroyed or the value cannot be stored; never a silent success.
func (e *Engine) Store(key string, value any, userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	payload, err := json.Marshal(value)
	if err != nil {
		e.appendAudit(model.AuditStore, key, userID, false)
		return false
	}
	sealed, err := Encrypt(e.key, payload)
	if err != nil {
		e.appendAudit(model.AuditStore, key, userID, false)
		return false
	}
	now := time.Now()
	e.items[key] = &model.StoredItem{
		EncryptedPayload: sealed,
		StoredAt:         now,
		ExpiresAt:        now.Add(e.ttl),
		LastAccessedAt:   now,
	}
	e.appendAudit(model.AuditStore, key, userID, true)
	return true
}

// Retrieve decrypts the item under key into dst. An expired key behaves like
// an absent one; corrupted ciphertext logs a failure and returns false.
func (e *Engine) Retrieve(key string, dst any, userID string) bool {
	raw, ok := e.retrieveRaw(key, userID)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// RetrieveRaw is Retrieve without unmarshalling, for callers that re-serialize
// (the export codec). It goes through the same audit and expiry path.
func (e *Engine) RetrieveRaw(key, userID string) (json.RawMessage, bool) {
	return e.retrieveRaw(key, userID)
}

func (e *Engine) retrieveRaw(key, userID string) (json.RawMessage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, false
	}
	item, ok := e.items[key]
	if ok && time.Now().After(item.ExpiresAt) {
		delete(e.items, key)
		e.appendAudit(model.AuditExpire, key, "", true)
		ok = false
	}
	if !ok {
		e.appendAudit(model.AuditRetrieve, key, userID, false)
		return nil, false
	}
	plaintext, err := Decrypt(e.key, item.EncryptedPayload)
	if err != nil {
		e.appendAudit(model.AuditRetrieve, key, userID, false)
		e.log.Error().Str("key", redactKey(key)).Msg("stored payload failed decryption")
		return nil, false
	}
	item.AccessCount++
	item.LastAccessedAt = time.Now()
	e.appendAudit(model.AuditRetrieve, key, userID, true)
	return plaintext, true
}

// Has reports whether key currently holds a live item. No audit entry: it
// reveals presence, not content, and the import codec polls it per key.
func (e *Engine) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[key]
	return ok && !time.Now().After(item.ExpiresAt)
}

// Keys lists live keys in no particular order.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(e.items))
	for k, item := range e.items {
		if now.After(item.ExpiresAt) {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// ItemMeta returns the storage metadata for key without touching the payload.
func (e *Engine) ItemMeta(key string) (model.StoredItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[key]
	if !ok {
		return model.StoredItem{}, false
	}
	meta := *item
	meta.EncryptedPayload = ""
	return meta, true
}

// Delete removes key. False when the key is absent or the engine destroyed.
func (e *Engine) Delete(key, userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return false
	}
	_, ok := e.items[key]
	if ok {
		delete(e.items, key)
	}
	e.appendAudit(model.AuditDelete, key, userID, ok)
	return ok
}

// ClearAllData wipes every item, keeping the audit trail.
func (e *Engine) ClearAllData(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.items = make(map[string]*model.StoredItem)
	e.appendAudit(model.AuditClear, "*", userID, true)
}

// AuditLog returns a copy of the append-only access log.
func (e *Engine) AuditLog() []model.AuditEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.AuditEntry, len(e.audit))
	copy(out, e.audit)
	return out
}

// Stats reports instance counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		ItemCount:    len(e.items),
		AuditEntries: len(e.audit),
		CreatedAt:    e.createdAt,
	}
	for _, item := range e.items {
		s.TotalAccesses += item.AccessCount
		if s.OldestStoredAt.IsZero() || item.StoredAt.Before(s.OldestStoredAt) {
			s.OldestStoredAt = item.StoredAt
		}
	}
	return s
}

// HealthCheck degrades to warning once the item count crosses the threshold.
func (e *Engine) HealthCheck() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := Health{Status: "healthy", ItemCount: len(e.items), Threshold: e.warnAt}
	if len(e.items) >= e.warnAt {
		h.Status = "warning"
	}
	return h
}

// Destroy wipes items and audit log and releases the sweeper. Idempotent;
// the engine refuses all operations afterwards.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.items = make(map[string]*model.StoredItem)
	e.audit = nil
	close(e.stop)
	e.mu.Unlock()
	<-e.done
}

// sweeper is the only background activity: it periodically removes expired
// items so retention does not depend on someone asking for the key.
func (e *Engine) sweeper(interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	now := time.Now()
	for k, item := range e.items {
		if now.After(item.ExpiresAt) {
			delete(e.items, k)
			e.appendAudit(model.AuditExpire, k, "", true)
		}
	}
}

// appendAudit records one access event. Callers hold e.mu.
func (e *Engine) appendAudit(action, key, userID string, success bool) {
	e.audit = append(e.audit, model.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Action:    action,
		Key:       redactKey(key),
		UserID:    userID,
		Success:   success,
	})
}

// redactKey keeps at most the first 8 characters so the log never carries a
// full storage key.
func redactKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "…"
}
