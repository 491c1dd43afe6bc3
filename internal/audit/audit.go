// Package audit implements the append-only audit log (spec §4.K): one
// self-delimiting JSON record per commit, written under a workspace's
// private directory. A corrupt record must never block subsequent
// appends or the reading of records around it.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dabstractor/jin/internal/jinerr"
)

// Record is one audit entry (spec §4.K): "{ timestamp, user, workspace,
// project?, mode?, scope?, layer, files[], base_commit, result_commit }".
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	User         string    `json:"user"`
	Workspace    string    `json:"workspace"`
	Project      string    `json:"project,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	Layer        string    `json:"layer"`
	Files        []string  `json:"files"`
	BaseCommit   string    `json:"base_commit"`
	ResultCommit string    `json:"result_commit"`
}

// Log owns one audit log file. Each Append call is one open-append-
// fsync-close sequence, so a crash mid-write never corrupts a prior
// record and the write is durable before Append returns (spec §4.K:
// "Writes are atomic per record (append + flush)").
type Log struct {
	path string
}

// Open returns a Log backed by path, creating its parent directory.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, jinerr.Wrap(err)
	}
	return &Log{path: path}, nil
}

// Append writes rec as one JSON line (spec §4.K: "records are self-
// delimiting").
func (l *Log) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return jinerr.Wrap(err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return jinerr.Wrap(err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return jinerr.Wrap(err)
	}
	return jinerr.Wrap(f.Sync())
}

// ReadAll reads every well-formed record in the log, skipping any line
// that fails to parse as JSON rather than aborting the whole read (spec
// §4.K: "Corruption of one record must not prevent subsequent appends");
// the same self-delimiting property makes a corrupt line skippable on
// read too. skipped reports how many lines were unparseable.
func ReadAll(path string) (records []Record, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, jinerr.Wrap(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, jinerr.Wrap(err)
	}
	return records, skipped, nil
}
