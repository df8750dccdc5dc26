package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrJournalBroken is matched by errors returned when a journal chain fails verification.
var ErrJournalBroken = errors.New("journal chain broken")

// JournalEntry links one committed record into the hash chain. Digest covers the
// previous digest, the entity kind, the id and the JSON encoding of the record.
type JournalEntry struct {
	Seq      uint64     `json:"seq"`
	Entity   EntityType `json:"entity"`
	EntityID uint64     `json:"entity_id"`
	Prev     string     `json:"prev"`
	Digest   string     `json:"digest"`
}

// JournalDigest computes the digest of a record chained after prev.
func JournalDigest(prev string, entity EntityType, id uint64, record any) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode %s %d: %w", entity, id, err)
	}
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], id)
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write([]byte(entity))
	h.Write(idBuf[:])
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// JournalBrokenError reports the first entry at which verification failed.
type JournalBrokenError struct {
	Seq    uint64
	Reason string
}

func (e JournalBrokenError) Error() string {
	return fmt.Sprintf("journal entry %d: %s", e.Seq, e.Reason)
}

// Is reports whether target is ErrJournalBroken.
func (e JournalBrokenError) Is(target error) bool { return target == ErrJournalBroken }

// VerifyJournal walks entries and recomputes every digest using lookup to fetch the
// committed record. lookup returns false when the record is missing.
func VerifyJournal(entries []JournalEntry, lookup func(EntityType, uint64) (any, bool)) error {
	type key struct {
		entity EntityType
		id     uint64
	}
	seen := make(map[key]struct{}, len(entries))
	prev := ""
	for i, entry := range entries {
		if entry.Seq != uint64(i) {
			return JournalBrokenError{Seq: uint64(i), Reason: fmt.Sprintf("unexpected sequence %d", entry.Seq)}
		}
		if entry.Prev != prev {
			return JournalBrokenError{Seq: entry.Seq, Reason: "previous digest mismatch"}
		}
		k := key{entry.Entity, entry.EntityID}
		if _, dup := seen[k]; dup {
			return JournalBrokenError{Seq: entry.Seq, Reason: fmt.Sprintf("%s %d journaled twice", entry.Entity, entry.EntityID)}
		}
		seen[k] = struct{}{}
		record, ok := lookup(entry.Entity, entry.EntityID)
		if !ok {
			return JournalBrokenError{Seq: entry.Seq, Reason: fmt.Sprintf("%s %d missing", entry.Entity, entry.EntityID)}
		}
		digest, err := JournalDigest(prev, entry.Entity, entry.EntityID, record)
		if err != nil {
			return err
		}
		if digest != entry.Digest {
			return JournalBrokenError{Seq: entry.Seq, Reason: "digest mismatch"}
		}
		prev = entry.Digest
	}
	return nil
}
