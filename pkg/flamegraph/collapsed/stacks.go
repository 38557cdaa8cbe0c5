// Package collapsed implements the collapsed stack format consumed by
// flamegraph tooling: one `frame;frame;frame value` line per stack,
// root-first.
package collapsed

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Sample struct {
	Stack []string
	Value int64
}

type Profile struct {
	Samples []Sample
}

func parseLine(line string) (Sample, error) {
	idx := strings.LastIndexByte(line, ' ')
	if idx == -1 {
		return Sample{}, errors.New("collapsed: malformed input")
	}
	value, err := strconv.ParseInt(line[idx+1:], 0, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("collapsed: malformed input: %w", err)
	}
	return Sample{
		Stack: strings.Split(line[:idx], ";"),
		Value: value,
	}, nil
}

func Decode(r io.Reader) (*Profile, error) {
	res := &Profile{
		Samples: make([]Sample, 0),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sample, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		res.Samples = append(res.Samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func Encode(profile *Profile, w io.Writer) error {
	for _, sample := range profile.Samples {
		_, err := fmt.Fprintf(w, "%s %d\n", strings.Join(sample.Stack, ";"), sample.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

func Unmarshal(buf []byte) (*Profile, error) {
	return Decode(bytes.NewBuffer(buf))
}

func Marshal(profile *Profile) ([]byte, error) {
	buf := new(bytes.Buffer)
	err := Encode(profile, buf)
	return buf.Bytes(), err
}
