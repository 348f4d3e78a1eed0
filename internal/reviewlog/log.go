// Package reviewlog persists the code review log and the documentation cursor
// as JSON files.
package reviewlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/docsplice/pkg/types"
)

// DefaultLogFile is the review log file name
const DefaultLogFile = "code_review_log.json"

// timeLayouts are accepted for date_time, newest writer format first
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Log is an append-only list of review records stored as a JSON array.
// Every read-modify-write happens under one lock.
type Log struct {
	path string
	mu   sync.RWMutex
}

// NewLog creates a log backed by the file at path
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file
func (l *Log) Path() string {
	return l.path
}

// Load returns every record. A missing, empty or corrupt file reads as empty.
func (l *Log) Load() ([]types.ReviewRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, _, err := l.load()
	return records, err
}

// Reviewed returns the identities of every reviewed function
func (l *Log) Reviewed() (map[types.ReviewKey]bool, error) {
	records, err := l.Load()
	if err != nil {
		return nil, err
	}

	reviewed := make(map[types.ReviewKey]bool, len(records))
	for _, r := range records {
		reviewed[r.Key()] = true
	}
	return reviewed, nil
}

// Append adds records to the end of the log. A corrupt log file is moved
// aside to <path>.corrupt before a fresh one is written.
func (l *Log) Append(records ...types.ReviewRecord) error {
	if len(records) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, corrupt, err := l.load()
	if err != nil {
		return err
	}

	if corrupt {
		if err := os.Rename(l.path, l.path+".corrupt"); err != nil {
			return fmt.Errorf("move corrupt review log: %w", err)
		}
	}

	all := append(existing, records...)
	entries := make([]entry, len(all))
	for i, r := range all {
		entries[i] = toEntry(r)
	}

	return writeJSON(l.path, entries)
}

// entry is the on-disk shape of a record
type entry struct {
	File     string   `json:"file"`
	Function string   `json:"function"`
	Glitches []string `json:"glitches"`
	DateTime string   `json:"date_time"`
}

func toEntry(r types.ReviewRecord) entry {
	glitches := r.Glitches
	if glitches == nil {
		glitches = []string{}
	}
	return entry{
		File:     r.File,
		Function: r.Function,
		Glitches: glitches,
		DateTime: r.DateTime.Format(time.RFC3339Nano),
	}
}

func (e entry) record() types.ReviewRecord {
	r := types.ReviewRecord{
		File:     e.File,
		Function: e.Function,
		Glitches: e.Glitches,
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, e.DateTime, time.Local); err == nil {
			r.DateTime = t
			break
		}
	}
	return r
}

// load reads the log. Entries without a file and function are skipped.
// corrupt is true when the file exists but is not a JSON array.
func (l *Log) load() (records []types.ReviewRecord, corrupt bool, err error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read review log: %w", err)
	}

	if len(data) == 0 {
		return nil, false, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, true, nil
	}

	records = make([]types.ReviewRecord, 0, len(raw))
	for _, msg := range raw {
		var e entry
		if err := json.Unmarshal(msg, &e); err != nil {
			continue
		}
		if e.File == "" || e.Function == "" {
			continue
		}
		records = append(records, e.record())
	}
	return records, false, nil
}

// writeJSON writes v to path atomically
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
