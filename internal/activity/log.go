package activity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// Type labels a recorded account activity.
type Type string

const (
	// TypeMessageSent counts outbound messages.
	TypeMessageSent Type = "message_sent"
	// TypeReactionAdded counts reactions added by the account.
	TypeReactionAdded Type = "reaction_added"
	// TypePingReceived counts mentions of the account.
	TypePingReceived Type = "ping_received"
	// TypeServerJoin counts server joins.
	TypeServerJoin Type = "server_join"
)

const dayLayout = "2006-01-02"

// Entry is one line of the activity log.
type Entry struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the day-bucketed dashboard payload. Slices are aligned with
// Labels and zero-filled for days without activity.
type History struct {
	Labels    []string `json:"labels"`
	Messages  []int    `json:"messages"`
	Reactions []int    `json:"reactions"`
	Pings     []int    `json:"pings"`
	Servers   []int    `json:"servers"`
}

// Log is an append-only JSONL activity log.
type Log struct {
	path string
	mu   sync.Mutex
	log  pslog.Logger
	now  func() time.Time
}

// NewLog constructs an activity log at path.
func NewLog(path string) (*Log, error) {
	return NewLogWithLogger(path, nil)
}

// NewLogWithLogger constructs an activity log with logging.
func NewLogWithLogger(path string, logger pslog.Logger) (*Log, error) {
	if path == "" {
		return nil, errors.New("activity log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("activity_log", path)
	}
	return &Log{path: path, log: logger, now: time.Now}, nil
}

// Record appends one activity entry.
func (l *Log) Record(t Type) error {
	entry := Entry{Type: t, Timestamp: l.now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		if l.log != nil {
			l.log.Warn("activity record failed", "err", err)
		}
		return err
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Write(append(data, '\n')); err != nil {
		if l.log != nil {
			l.log.Warn("activity record failed", "err", err)
		}
		return err
	}
	return nil
}

// History aggregates the last days of activity into day buckets.
// Malformed lines are skipped; a missing file yields an all-zero history.
func (l *Log) History(days int) (History, error) {
	if days <= 0 {
		days = 7
	}
	end := l.now().UTC()
	start := end.AddDate(0, 0, -days)

	labels := make([]string, 0, days+1)
	index := make(map[string]int, days+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		label := day.Format(dayLayout)
		index[label] = len(labels)
		labels = append(labels, label)
	}

	history := History{
		Labels:    labels,
		Messages:  make([]int, len(labels)),
		Reactions: make([]int, len(labels)),
		Pings:     make([]int, len(labels)),
		Servers:   make([]int, len(labels)),
	}

	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return history, nil
		}
		if l.log != nil {
			l.log.Warn("activity history failed", "err", err)
		}
		return History{}, err
	}

	skipped := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			skipped++
			continue
		}
		slot, ok := index[entry.Timestamp.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		switch entry.Type {
		case TypeMessageSent:
			history.Messages[slot]++
		case TypeReactionAdded:
			history.Reactions[slot]++
		case TypePingReceived:
			history.Pings[slot]++
		case TypeServerJoin:
			history.Servers[slot]++
		}
	}
	if err := scanner.Err(); err != nil {
		return History{}, err
	}
	if skipped > 0 && l.log != nil {
		l.log.Debug("activity history skipped lines", "count", skipped)
	}
	return history, nil
}
