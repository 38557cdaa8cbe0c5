// Package tracedump reads and writes the spool format produced by the
// in-process sampler: one aggregated stack trace per line,
//
//	<pid> <count> <metric> <frame>[;<frame>...]
//
// where each frame is <hex method id>:<line marker> and the leaf frame
// comes first. Blank lines and lines starting with '#' are ignored.
package tracedump

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jvmprof/jvmprof/pkg/jvm"
)

// Record is one spool line: a stack trace observed Count times with an
// accumulated Metric value (bytes, nanoseconds, ...).
type Record struct {
	PID    uint32
	Count  int64
	Metric int64
	Trace  jvm.Trace
}

// Scanner reads records one by one. Like bufio.Scanner, it stops at the
// first error and reports it through Err.
type Scanner struct {
	scanner *bufio.Scanner
	record  Record
	err     error
	lineno  int
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{scanner: bufio.NewScanner(r)}
}

// Scan advances to the next record. It returns false when the input is
// exhausted or malformed; the two are told apart through Err.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		s.lineno++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		record, err := parseRecord(line)
		if err != nil {
			s.err = fmt.Errorf("tracedump: line %d: %w", s.lineno, err)
			return false
		}
		s.record = record
		return true
	}
	s.err = s.scanner.Err()
	return false
}

// Record returns the record produced by the last successful Scan. The
// contained trace is freshly allocated and safe to retain.
func (s *Scanner) Record() Record {
	return s.record
}

func (s *Scanner) Err() error {
	return s.err
}

func parseRecord(line string) (Record, error) {
	items := strings.SplitN(line, " ", 4)
	if len(items) != 4 {
		return Record{}, fmt.Errorf("malformed record (expected 4 fields): %s", line)
	}

	pid, err := strconv.ParseUint(items[0], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse pid: %w", err)
	}
	count, err := strconv.ParseInt(items[1], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse count: %w", err)
	}
	metric, err := strconv.ParseInt(items[2], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse metric: %w", err)
	}
	trace, err := parseTrace(items[3])
	if err != nil {
		return Record{}, err
	}

	return Record{
		PID:    uint32(pid),
		Count:  count,
		Metric: metric,
		Trace:  trace,
	}, nil
}

func parseTrace(data string) (jvm.Trace, error) {
	parts := strings.Split(data, ";")
	frames := make([]jvm.Frame, 0, len(parts))
	for _, part := range parts {
		frame, err := parseFrame(part)
		if err != nil {
			return jvm.Trace{}, err
		}
		frames = append(frames, frame)
	}
	return jvm.Trace{Frames: frames}, nil
}

func parseFrame(data string) (jvm.Frame, error) {
	// The line marker can be negative, so split on the last colon.
	idx := strings.LastIndexByte(data, ':')
	if idx == -1 {
		return jvm.Frame{}, fmt.Errorf("malformed frame (no line marker): %s", data)
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(data[:idx], "0x"), 16, 64)
	if err != nil {
		return jvm.Frame{}, fmt.Errorf("failed to parse method id: %w", err)
	}
	line, err := strconv.ParseInt(data[idx+1:], 10, 32)
	if err != nil {
		return jvm.Frame{}, fmt.Errorf("failed to parse line marker: %w", err)
	}

	return jvm.Frame{Method: jvm.MethodID(id), Line: int32(line)}, nil
}

// Decode reads all records from r.
func Decode(r io.Reader) ([]Record, error) {
	records := make([]Record, 0)

	scanner := NewScanner(r)
	for scanner.Scan() {
		records = append(records, scanner.Record())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Writer emits records in the spool format.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteRecord(record Record) error {
	var sb strings.Builder
	for i, frame := range record.Trace.Frames {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatUint(uint64(frame.Method), 16))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(int64(frame.Line), 10))
	}

	_, err := fmt.Fprintf(w.w, "%d %d %d %s\n", record.PID, record.Count, record.Metric, sb.String())
	return err
}

// Encode writes all records to w.
func Encode(records []Record, w io.Writer) error {
	writer := NewWriter(w)
	for _, record := range records {
		if err := writer.WriteRecord(record); err != nil {
			return err
		}
	}
	return nil
}
