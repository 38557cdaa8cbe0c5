// Package methodmap resolves JVM frames through method map files.
//
// A method map is a text file dumped by the in-process sampler, one method
// per line:
//
//	<hex id> <class> <method> <descriptor> <line> [file]
//
// Missing class, descriptor or file fields are written as "-". Class names
// may use the slashed internal form; they are normalized to dotted form on
// parse. Blank lines and lines starting with '#' are ignored.
package methodmap

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jvmprof/jvmprof/pkg/jvm"
	"github.com/jvmprof/jvmprof/pkg/jvm/jvmsym"
)

const placeholder = "-"

type entry struct {
	class      string
	method     string
	descriptor string
	file       string
	line       int64
}

// Map holds the parsed symbol table of one process. It implements both
// jvm.Resolver and jvm.NativeResolver.
type Map struct {
	methods map[jvm.MethodID]*entry
}

var (
	_ jvm.Resolver       = (*Map)(nil)
	_ jvm.NativeResolver = (*Map)(nil)
)

func parseHex(data string) (uint64, error) {
	data = strings.TrimPrefix(data, "0x")

	num, err := strconv.ParseUint(data, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse hex: %w", err)
	}
	return num, nil
}

func parseLine(line string) (jvm.MethodID, *entry, error) {
	items := strings.SplitN(line, " ", 6)
	if len(items) < 5 {
		return 0, nil, fmt.Errorf("invalid line (does not contain 5 parts): %s", line)
	}

	id, err := parseHex(items[0])
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse method id: %w", err)
	}

	lineNumber, err := strconv.ParseInt(items[4], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse line number: %w", err)
	}

	e := &entry{
		class:      field(items[1]),
		method:     field(items[2]),
		descriptor: field(items[3]),
		line:       lineNumber,
	}
	e.class = jvmsym.FixPath(e.class)
	if len(items) == 6 {
		e.file = field(items[5])
	}
	return jvm.MethodID(id), e, nil
}

func field(s string) string {
	if s == placeholder {
		return ""
	}
	return s
}

// Parse reads a whole method map. Later entries for the same id win, so a
// map appended to by the sampler after method recompilation stays usable.
func Parse(reader io.Reader) (*Map, error) {
	methods := make(map[jvm.MethodID]*entry)

	scanner := bufio.NewScanner(reader)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		methods[id] = e
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan method map: %w", err)
	}

	return &Map{methods: methods}, nil
}

// ParseFile reads the method map at path.
func ParseFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Empty returns a map that resolves nothing. Frames looked up through it
// fall back to the builder's unknown-method handling.
func Empty() *Map {
	return &Map{methods: make(map[jvm.MethodID]*entry)}
}

func (m *Map) Size() int {
	return len(m.methods)
}

// Resolve returns the symbol information for a Java frame. For frames with
// a real line marker the marker wins over the method's declared line.
func (m *Map) Resolve(frame jvm.Frame) (jvm.FrameInfo, bool) {
	e, ok := m.methods[frame.Method]
	if !ok {
		return jvm.FrameInfo{}, false
	}

	info := jvm.FrameInfo{
		FileName:   e.file,
		ClassName:  e.class,
		MethodName: e.method,
		Signature:  e.descriptor,
		LineNumber: e.line,
	}
	if frame.Line > 0 {
		info.LineNumber = int64(frame.Line)
	}
	return info, true
}

// ResolveNative names a native frame; the result is empty when the address
// is not in the map.
func (m *Map) ResolveNative(frame jvm.Frame) string {
	e, ok := m.methods[frame.Method]
	if !ok {
		return ""
	}
	if e.class == "" {
		return e.method
	}
	return e.class + "." + e.method
}
