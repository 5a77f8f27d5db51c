package audit

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// The on-disk block layout is fixed for compatibility with the legacy log
// readers: header line, labeled fields, footer line, blank line.
const (
	blockHeader = "==================== EMERGENCY LOG ===================="
	blockFooter = "======================================================="
)

// Record is one delivery attempt as persisted to the audit store. Immutable
// once written.
type Record struct {
	AlertID  string
	Channel  models.ChannelKind
	Status   models.AlertStatus
	Message  string
	LoggedAt time.Time
}

// NewRecord snapshots an alert's post-dispatch state for persistence.
func NewRecord(a *models.Alert) Record {
	return Record{
		AlertID:  a.ID,
		Channel:  a.Channel,
		Status:   a.Status,
		Message:  a.Message,
		LoggedAt: time.Now(),
	}
}

// Log is a durable append-only store of dispatch outcomes backed by a single
// file. All writes go through one mutex so concurrent deliveries can never
// interleave partial blocks.
type Log struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one complete record block and flushes it before returning.
// The block is formatted up front and written with a single Write call, so a
// reader never observes a partial block.
func (l *Log) Append(r Record) error {
	var b strings.Builder
	b.WriteString(blockHeader + "\n")
	fmt.Fprintf(&b, "Alert ID: %s\n", r.AlertID)
	fmt.Fprintf(&b, "Type: %s\n", r.Channel)
	fmt.Fprintf(&b, "Status: %s\n", r.Status)
	fmt.Fprintf(&b, "Message: %s\n", r.Message)
	fmt.Fprintf(&b, "Timestamp: %d\n", r.LoggedAt.Unix())
	b.WriteString(blockFooter + "\n\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	return nil
}

// ReadAll returns the persisted lines in original write order. A store that
// has not been written yet yields an empty slice, not an error.
func (l *Log) ReadAll() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return lines, nil
}

// Clear truncates the store; a following ReadAll returns nothing.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("truncate audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	return nil
}

// ParseRecords reconstructs records from persisted lines. Each block parses
// independently; malformed blocks are reported rather than skipped.
func ParseRecords(lines []string) ([]Record, error) {
	var records []Record
	for i := 0; i < len(lines); i++ {
		if lines[i] != blockHeader {
			continue
		}
		if i+6 >= len(lines) || lines[i+6] != blockFooter {
			return nil, fmt.Errorf("malformed audit block at line %d", i+1)
		}
		r := Record{
			AlertID: strings.TrimPrefix(lines[i+1], "Alert ID: "),
			Channel: models.ChannelKind(strings.TrimPrefix(lines[i+2], "Type: ")),
			Status:  models.AlertStatus(strings.TrimPrefix(lines[i+3], "Status: ")),
			Message: strings.TrimPrefix(lines[i+4], "Message: "),
		}
		ts, err := strconv.ParseInt(strings.TrimPrefix(lines[i+5], "Timestamp: "), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed audit timestamp at line %d: %w", i+6, err)
		}
		r.LoggedAt = time.Unix(ts, 0)
		records = append(records, r)
		i += 6
	}
	return records, nil
}
