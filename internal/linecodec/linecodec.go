// Package linecodec implements the line-oriented exchange format shared by the
// windower, the inference service, and the reconciler: one record per line,
// three positional fields separated by commas.
//
// The separator contract is strict. Field values must not contain the
// separator or a line break; encoding rejects them instead of producing a line
// that would silently split into the wrong number of fields downstream.
package linecodec

import (
	"errors"
	"fmt"
	"strings"
)

// Separator delimits the three fields of a record line.
const Separator = ","

var (
	ErrFieldContainsSeparator = errors.New("field contains separator")
	ErrFieldContainsLineBreak = errors.New("field contains line break")
	ErrMalformedLine          = errors.New("malformed record line")
)

// Record is one line of the exchange format. Key identifies the job, Timestamp
// is the queue-assigned arrival time, and Value is the payload on the way into
// inference or the inference result on the way out.
type Record struct {
	Key       string
	Timestamp string
	Value     string
}

// EncodeLine renders r as a single line without a trailing newline.
func EncodeLine(r Record) (string, error) {
	for _, f := range []string{r.Key, r.Timestamp, r.Value} {
		if strings.Contains(f, Separator) {
			return "", fmt.Errorf("encode record %q: %w", r.Key, ErrFieldContainsSeparator)
		}
		if strings.ContainsAny(f, "\n\r") {
			return "", fmt.Errorf("encode record %q: %w", r.Key, ErrFieldContainsLineBreak)
		}
	}
	return r.Key + Separator + r.Timestamp + Separator + r.Value, nil
}

// DecodeLine parses one line into a Record. A line with anything other than
// exactly three fields is malformed.
func DecodeLine(line string) (Record, error) {
	fields := strings.Split(line, Separator)
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("expected 3 fields, got %d: %w", len(fields), ErrMalformedLine)
	}
	return Record{Key: fields[0], Timestamp: fields[1], Value: fields[2]}, nil
}

// SplitLines splits object content into lines, dropping a trailing empty line
// left by a final newline.
func SplitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
