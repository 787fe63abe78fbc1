// Package audit emits one structured syslog record per signing
// attempt. Syslog write failures are downgraded to the process logger
// and never propagate to the caller.
package audit

import (
	"fmt"

	"github.com/RackSec/srslog"
	"github.com/sirupsen/logrus"
)

// Status is the outcome recorded for one signing attempt.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Entry is one audit record. Every record names both keyid and the
// pre-signing content hash.
type Entry struct {
	Filename string
	PreHash  string
	PostHash string // empty for KMS-backend records
	KeyID    string
	Status   Status
}

// Logger writes Entry records to the local syslog.
type Logger struct {
	writer *srslog.Writer
	log    *logrus.Logger
}

// NewLogger dials the local syslog daemon tagged "signserver". If the
// dial fails, the returned Logger still works: Record falls back to
// the process logger for every call instead of failing startup, since
// audit delivery must never block signing.
func NewLogger(log *logrus.Logger) *Logger {
	w, err := srslog.Dial("", "", srslog.LOG_INFO|srslog.LOG_AUTH, "signserver")
	if err != nil {
		log.WithError(err).Warn("audit: syslog unavailable, falling back to process log")
		return &Logger{log: log}
	}
	return &Logger{writer: w, log: log}
}

// Record emits one audit line. It never returns an error: on syslog
// failure the record is downgraded to the process logger.
func (l *Logger) Record(e Entry) {
	line := fmt.Sprintf("filename=%s pre_hash=%s post_hash=%s keyid=%s status=%s",
		e.Filename, e.PreHash, e.PostHash, e.KeyID, e.Status)

	if l.writer == nil {
		l.log.WithField("audit_write_failed", true).Info(line)
		return
	}
	if _, err := l.writer.Write([]byte(line)); err != nil {
		l.log.WithField("audit_write_failed", true).WithError(err).Error(line)
	}
}

// Close releases the syslog connection, if any.
func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}
