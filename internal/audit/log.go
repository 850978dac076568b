// Package audit implements a local, in-process hash-chained log (C11) of
// share/revoke/register/backup events. Disabled by default, never
// transmitted to the server, and with zero effect on wire behavior: a
// purely local forensic aid for operators.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Entry is one hash-chained record: What identifies the event kind
// ("share", "revoke", "register", "backup"), Fields carries event-specific
// detail, and Hash chains to the previous entry's hash.
type Entry struct {
	TS     int64             `json:"ts"`
	What   string            `json:"what"`
	Fields map[string]string `json:"fields,omitempty"`
	Hash   string            `json:"hash"`
}

func (e Entry) chainInput(prevHash []byte) []byte {
	fieldsJSON, _ := json.Marshal(e.Fields)
	buf := make([]byte, 0, len(prevHash)+len(e.What)+len(fieldsJSON)+8)
	buf = append(buf, prevHash...)
	buf = append(buf, e.What...)
	buf = append(buf, fieldsJSON...)
	return buf
}

// Log is a hash-chained append-only audit trail. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	lastHash []byte
	entries  []Entry
}

// New builds an empty Log.
func New() *Log {
	return &Log{}
}

// Append records one event, chaining it to the previous entry's hash.
func (l *Log) Append(what string, fields map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{TS: time.Now().Unix(), What: what, Fields: fields}
	h := sha256.Sum256(e.chainInput(l.lastHash))
	e.Hash = hex.EncodeToString(h[:])

	l.lastHash = h[:]
	l.entries = append(l.entries, e)
	return nil
}

// Verify recomputes the chain from scratch and confirms it matches every
// stored hash, detecting any tampering or corruption of the in-memory log.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev []byte
	for i, e := range l.entries {
		h := sha256.Sum256(e.chainInput(prev))
		if hex.EncodeToString(h[:]) != e.Hash {
			return fmt.Errorf("audit: chain broken at entry %d (%s)", i, e.What)
		}
		prev = h[:]
	}
	return nil
}

// Entries returns a defensive copy of every recorded entry, in order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}
