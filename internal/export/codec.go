// Package export serializes stored record sets into a single
// password-protected, checksummed JSON document and reverses the operation
// with full validation.
package export

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-schedule-ingest/internal/model"
	"clinic-schedule-ingest/internal/securestore"
)

// Version tags the envelope for forward compatibility.
const Version = "1.0"

// ContentType is the MIME type of an exported document.
const ContentType = "application/json"

// cipherPrefix marks a field value that has been replaced by ciphertext.
const cipherPrefix = "enc:v1:"

// verifierPlaintext is sealed under the derived key at export time so a wrong
// password is detectable even when no sensitive fields were listed.
const verifierPlaintext = "schedule-export-verifier"

// wrapField carries non-object payloads through the object-shaped envelope.
const wrapField = "__value"

// Codec exports from and imports into one storage engine.
type Codec struct {
	engine *securestore.Engine
	log    zerolog.Logger
}

// New builds a codec bound to engine.
func New(engine *securestore.Engine, logger *zerolog.Logger) *Codec {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Codec{engine: engine, log: log}
}

// ExportOptions selects what goes into a document.
type ExportOptions struct {
	// Keys limits the export; nil exports every live key.
	Keys []string
	// SensitiveFields are field names to encrypt wherever they appear in the
	// payload, at any nesting depth.
	SensitiveFields []string
	// IncludeMetadata adds per-record storage metadata; false omits the
	// object entirely.
	IncludeMetadata bool
	// UserID lands in the engine audit trail for each record read.
	UserID string
}

// ImportOptions controls conflict and validation behavior.
type ImportOptions struct {
	// Overwrite replaces existing keys instead of reporting a conflict.
	Overwrite bool
	// SkipChecksum disables tamper detection. Validation is the default.
	SkipChecksum bool
	// UserID lands in the engine audit trail for each record written.
	UserID string
}

// ExportToJSON reads the selected records through the engine's audited
// retrieve path, seals the listed sensitive fields with password-derived key
// material, and returns the checksummed document.
func (c *Codec) ExportToJSON(password string, opts ExportOptions) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("export password is required")
	}

	keys := opts.Keys
	if keys == nil {
		keys = c.engine.Keys()
	}
	sort.Strings(keys)

	salt, err := securestore.NewSalt()
	if err != nil {
		return nil, err
	}
	derived := securestore.DeriveKey(password, salt)

	fields := fieldSet(opts.SensitiveFields)
	data := make(map[string]model.ExportRecord, len(keys))
	for _, key := range keys {
		raw, ok := c.engine.RetrieveRaw(key, opts.UserID)
		if !ok {
			return nil, fmt.Errorf("record %q is not retrievable", redact(key))
		}
		payload := wrapPayload(raw)
		if err := encryptFields(derived, payload, fields); err != nil {
			return nil, fmt.Errorf("encrypting fields for %q: %w", redact(key), err)
		}
		rec := model.ExportRecord{Data: payload}
		if opts.IncludeMetadata {
			if meta, ok := c.engine.ItemMeta(key); ok {
				rec.Metadata = &model.ExportItemMeta{
					StoredAt:    meta.StoredAt,
					ExpiresAt:   meta.ExpiresAt,
					AccessCount: meta.AccessCount,
				}
			}
		}
		data[key] = rec
	}

	checksum, err := checksumData(data)
	if err != nil {
		return nil, err
	}
	verifier, err := securestore.Encrypt(derived, []byte(verifierPlaintext))
	if err != nil {
		return nil, err
	}

	doc := model.ExportDocument{
		Version:         Version,
		ExportedAt:      time.Now().UTC(),
		Data:            data,
		Checksum:        checksum,
		EncryptedFields: opts.SensitiveFields,
		KeySalt:         base64.StdEncoding.EncodeToString(salt),
		Verifier:        verifier,
	}
	c.log.Info().Int("records", len(data)).Msg("schedule export produced")
	return json.Marshal(doc)
}

// ImportFromJSON validates and loads a document produced by ExportToJSON.
// Malformed JSON, a failed checksum or a wrong password abort with no writes;
// per-key conflicts and per-record validation failures only exclude the key
// they concern.
func (c *Codec) ImportFromJSON(file []byte, password string, opts ImportOptions) model.ImportResult {
	var doc model.ExportDocument
	if err := json.Unmarshal(file, &doc); err != nil {
		return failure(fmt.Sprintf("invalid JSON: %v", err))
	}
	if doc.Version == "" || doc.Data == nil {
		return failure("not a schedule export document")
	}
	if doc.Version != Version && !strings.HasPrefix(doc.Version, "1.") {
		return failure(fmt.Sprintf("unsupported export version %q", doc.Version))
	}

	if !opts.SkipChecksum {
		checksum, err := checksumData(doc.Data)
		if err != nil {
			return failure(fmt.Sprintf("checksum computation failed: %v", err))
		}
		if checksum != doc.Checksum {
			return failure("Checksum validation failed")
		}
	}

	salt, err := base64.StdEncoding.DecodeString(doc.KeySalt)
	if err != nil {
		return failure("invalid key salt")
	}
	derived := securestore.DeriveKey(password, salt)
	if plain, err := securestore.Decrypt(derived, doc.Verifier); err != nil || string(plain) != verifierPlaintext {
		return failure("invalid password")
	}

	// decrypt everything up front so a bad field aborts before any write
	fields := fieldSet(doc.EncryptedFields)
	for key, rec := range doc.Data {
		if err := decryptFields(derived, rec.Data, fields); err != nil {
			c.log.Warn().Str("key", redact(key)).Msg("import decryption failed")
			return failure("invalid password or corrupted data")
		}
	}

	result := model.ImportResult{Success: true}
	keys := make([]string, 0, len(doc.Data))
	for key := range doc.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rec := doc.Data[key]
		if reason := validatePayload(rec.Data); reason != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", key, reason))
			continue
		}
		if !opts.Overwrite && c.engine.Has(key) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: already exists", key))
			continue
		}
		if !c.engine.Store(key, unwrapPayload(rec.Data), opts.UserID) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: storage rejected record", key))
			continue
		}
		result.Imported++
	}
	c.log.Info().Int("imported", result.Imported).Int("errors", len(result.Errors)).
		Msg("schedule import finished")
	return result
}

func failure(msg string) model.ImportResult {
	return model.ImportResult{Success: false, Errors: []string{msg}}
}

// checksumData digests the canonical JSON serialization of the data section.
// encoding/json sorts map keys, which is the canonical form on both sides.
func checksumData(data map[string]model.ExportRecord) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// wrapPayload turns a stored payload into the object shape the envelope
// needs. Non-object payloads travel under a reserved field.
func wrapPayload(raw json.RawMessage) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	_ = json.Unmarshal(raw, &v)
	return map[string]any{wrapField: v}
}

func unwrapPayload(data map[string]any) any {
	if len(data) == 1 {
		if v, ok := data[wrapField]; ok {
			return v
		}
	}
	return data
}

// validatePayload rejects records whose appointment entries lost mandatory
// fields: any object carrying a "name" key must have a non-empty value.
func validatePayload(node any) string {
	switch v := node.(type) {
	case map[string]any:
		if name, ok := v["name"]; ok {
			s, isString := name.(string)
			if !isString || strings.TrimSpace(s) == "" {
				return "record has an empty name"
			}
		}
		for _, child := range v {
			if reason := validatePayload(child); reason != "" {
				return reason
			}
		}
	case []any:
		for _, child := range v {
			if reason := validatePayload(child); reason != "" {
				return reason
			}
		}
	}
	return ""
}

// encryptFields walks the payload and replaces every listed field, at any
// depth, with a prefixed ciphertext string.
func encryptFields(key []byte, node any, fields map[string]bool) error {
	switch v := node.(type) {
	case map[string]any:
		for name, child := range v {
			if fields[name] {
				plain, err := json.Marshal(child)
				if err != nil {
					return err
				}
				sealed, err := securestore.Encrypt(key, plain)
				if err != nil {
					return err
				}
				v[name] = cipherPrefix + sealed
				continue
			}
			if err := encryptFields(key, child, fields); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range v {
			if err := encryptFields(key, child, fields); err != nil {
				return err
			}
		}
	}
	return nil
}

// decryptFields reverses encryptFields in place.
func decryptFields(key []byte, node any, fields map[string]bool) error {
	switch v := node.(type) {
	case map[string]any:
		for name, child := range v {
			if fields[name] {
				s, ok := child.(string)
				if !ok || !strings.HasPrefix(s, cipherPrefix) {
					continue
				}
				plain, err := securestore.Decrypt(key, strings.TrimPrefix(s, cipherPrefix))
				if err != nil {
					return err
				}
				var value any
				if err := json.Unmarshal(plain, &value); err != nil {
					return err
				}
				v[name] = value
				continue
			}
			if err := decryptFields(key, child, fields); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range v {
			if err := decryptFields(key, child, fields); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func redact(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "…"
}
