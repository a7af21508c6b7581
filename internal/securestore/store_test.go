package securestore

import (
	"strings"
	"testing"
	"time"

	"clinic-schedule-ingest/internal/model"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(e.Destroy)
	return e
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	e := newEngine(t, Config{})

	in := model.AppointmentRecord{Name: "JANE ROE", DateOfBirth: "1970-02-02", Status: model.StatusArrived}
	if !e.Store("appt:1", in, "alice") {
		t.Fatal("store failed")
	}

	var out model.AppointmentRecord
	if !e.Retrieve("appt:1", &out, "alice") {
		t.Fatal("retrieve failed")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestRetrieveAbsentKey(t *testing.T) {
	e := newEngine(t, Config{})
	var out any
	if e.Retrieve("missing", &out, "") {
		t.Fatal("retrieve of absent key succeeded")
	}
}

func TestAuditTrail(t *testing.T) {
	e := newEngine(t, Config{})

	key := "a-very-long-storage-key-with-phi-context"
	e.Store(key, "payload", "alice")
	var s string
	e.Retrieve(key, &s, "bob")
	e.Delete(key, "alice")
	e.Retrieve(key, &s, "carol") // now absent, fails

	log := e.AuditLog()
	if len(log) != 4 {
		t.Fatalf("got %d audit entries, want 4", len(log))
	}
	wantActions := []string{model.AuditStore, model.AuditRetrieve, model.AuditDelete, model.AuditRetrieve}
	wantSuccess := []bool{true, true, true, false}
	for i, entry := range log {
		if entry.Action != wantActions[i] || entry.Success != wantSuccess[i] {
			t.Errorf("entry %d = %s/%v, want %s/%v", i, entry.Action, entry.Success, wantActions[i], wantSuccess[i])
		}
		if strings.Contains(entry.Key, "phi-context") {
			t.Errorf("entry %d leaks the full key: %q", i, entry.Key)
		}
		if len([]rune(entry.Key)) > 9 {
			t.Errorf("entry %d key not redacted: %q", i, entry.Key)
		}
	}
	if log[1].UserID != "bob" {
		t.Errorf("retrieve user = %q, want bob", log[1].UserID)
	}
}

func TestExpirationSweep(t *testing.T) {
	e := newEngine(t, Config{DefaultTTL: 40 * time.Millisecond, SweepInterval: 10 * time.Millisecond})

	e.Store("ephemeral", "x", "")
	time.Sleep(120 * time.Millisecond)

	var out string
	if e.Retrieve("ephemeral", &out, "") {
		t.Fatal("retrieve succeeded after expiration")
	}

	expires := 0
	for _, entry := range e.AuditLog() {
		if entry.Action == model.AuditExpire {
			expires++
		}
	}
	if expires != 1 {
		t.Fatalf("got %d EXPIRE entries, want exactly 1", expires)
	}
}

func TestLazyExpirationOnAccess(t *testing.T) {
	// sweep far in the future: only the access-time check can expire it
	e := newEngine(t, Config{DefaultTTL: 30 * time.Millisecond, SweepInterval: time.Hour})

	e.Store("lazy", "x", "")
	time.Sleep(60 * time.Millisecond)

	var out string
	if e.Retrieve("lazy", &out, "") {
		t.Fatal("retrieve succeeded after expiration")
	}
	expires := 0
	for _, entry := range e.AuditLog() {
		if entry.Action == model.AuditExpire {
			expires++
		}
	}
	if expires != 1 {
		t.Fatalf("got %d EXPIRE entries, want exactly 1", expires)
	}
}

func TestCorruptedCiphertext(t *testing.T) {
	e := newEngine(t, Config{})
	e.Store("k", map[string]string{"name": "JANE"}, "")

	e.mu.Lock()
	e.items["k"].EncryptedPayload = "not-even-base64!!"
	e.mu.Unlock()

	var out map[string]string
	if e.Retrieve("k", &out, "") {
		t.Fatal("retrieve of corrupted ciphertext succeeded")
	}
	log := e.AuditLog()
	last := log[len(log)-1]
	if last.Action != model.AuditRetrieve || last.Success {
		t.Fatalf("corrupted retrieve logged as %s/%v", last.Action, last.Success)
	}
}

func TestClearAllData(t *testing.T) {
	e := newEngine(t, Config{})
	e.Store("a", 1, "")
	e.Store("b", 2, "")
	e.ClearAllData("admin")

	if e.Stats().ItemCount != 0 {
		t.Fatal("items survived clear")
	}
	log := e.AuditLog()
	if log[len(log)-1].Action != model.AuditClear {
		t.Fatalf("last audit action = %s, want CLEAR", log[len(log)-1].Action)
	}
}

func TestDestroy(t *testing.T) {
	e, err := New(Config{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	e.Store("k", "v", "")
	e.Destroy()
	e.Destroy() // idempotent

	if e.Store("k2", "v", "") {
		t.Fatal("store succeeded after destroy")
	}
	var out string
	if e.Retrieve("k", &out, "") {
		t.Fatal("retrieve succeeded after destroy")
	}
	if len(e.AuditLog()) != 0 {
		t.Fatal("audit log survived destroy")
	}
}

func TestHealthCheckThreshold(t *testing.T) {
	e := newEngine(t, Config{HealthWarnThreshold: 3})

	for _, k := range []string{"a", "b"} {
		e.Store(k, "x", "")
	}
	if h := e.HealthCheck(); h.Status != "healthy" {
		t.Fatalf("status = %q below threshold", h.Status)
	}
	e.Store("c", "x", "")
	if h := e.HealthCheck(); h.Status != "warning" {
		t.Fatalf("status = %q at threshold, want warning", h.Status)
	}
}

func TestStats(t *testing.T) {
	e := newEngine(t, Config{})
	e.Store("a", "x", "")
	var s string
	e.Retrieve("a", &s, "")
	e.Retrieve("a", &s, "")

	stats := e.Stats()
	if stats.ItemCount != 1 {
		t.Errorf("item count = %d", stats.ItemCount)
	}
	if stats.TotalAccesses != 2 {
		t.Errorf("total accesses = %d, want 2", stats.TotalAccesses)
	}
	if stats.AuditEntries != 3 {
		t.Errorf("audit entries = %d, want 3", stats.AuditEntries)
	}
}

func TestPassphraseDerivedKey(t *testing.T) {
	e := newEngine(t, Config{Passphrase: "correct horse battery staple"})
	if !e.Store("k", "v", "") {
		t.Fatal("store with passphrase-derived key failed")
	}
	var out string
	if !e.Retrieve("k", &out, "") || out != "v" {
		t.Fatalf("retrieve = %q", out)
	}
}
