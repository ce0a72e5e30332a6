// Package meta unifies the two metadata sources — fixed binary header and
// optional XML footer — into one version-independent description, collecting
// schema violations instead of failing on the first.
package meta

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// ErrSchema marks a report that contains at least one ERROR violation.
var ErrSchema = errors.New("metadata schema violations")

// Violation is one finding from metadata unification. Structural problems
// (unreadable bytes, impossible layout) are Go errors instead; a Violation
// always refers to a file that could be fully read.
type Violation struct {
	Ts       time.Time `json:"ts"`
	File     string    `json:"file"`
	Section  string    `json:"section,omitempty"`
	CheckId  string    `json:"checkId"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Report accumulates violations for one file.
type Report struct {
	File       string
	Violations []Violation
}

func (r *Report) add(sev Severity, checkID, section, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{
		Ts:       time.Now(),
		File:     r.File,
		Section:  section,
		CheckId:  checkID,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *Report) Errors() int   { return r.count(ERROR) }
func (r *Report) Warnings() int { return r.count(WARN) }

func (r *Report) count(sev Severity) int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == sev {
			n++
		}
	}
	return n
}

// Err returns nil when the report holds no ERROR violations.
func (r *Report) Err() error {
	if n := r.Errors(); n > 0 {
		return fmt.Errorf("%s: %d error(s): %w", r.File, n, ErrSchema)
	}
	return nil
}

// WriteNDJSON writes one violation per line to path.
func (r *Report) WriteNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, v := range r.Violations {
		b, _ := json.Marshal(v)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}
