package mailer

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
)

// DeadLetter is a job that could not be delivered.
type DeadLetter struct {
	JobID        string              `json:"job_id"`
	Notification domain.Notification `json:"notification"`
	Attempts     int                 `json:"attempts"`
	Reason       string              `json:"reason"`
	FailedAt     time.Time           `json:"failed_at"`
}

// DeadLetterLog appends undeliverable jobs to a file, one JSON object per
// line. An empty path discards records.
type DeadLetterLog struct {
	mu   sync.Mutex
	path string
}

func NewDeadLetterLog(path string) *DeadLetterLog {
	return &DeadLetterLog{path: path}
}

// Append writes one record.
func (l *DeadLetterLog) Append(d DeadLetter) error {
	if l == nil || l.path == "" {
		return nil
	}

	line, err := json.Marshal(d)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("mailer: open dead letter file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("mailer: write dead letter: %w", err)
	}
	return f.Close()
}
