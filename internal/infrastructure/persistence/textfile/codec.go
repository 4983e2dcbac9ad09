// Package textfile stores transcripts in the flat comma-separated text format:
//
//	<studentName>
//	<semesterID>,<courseCode>,<courseName>,<credits>,<grade>
//	...
//
// Fields are written verbatim. There is no quoting or escaping, so a comma
// inside a course name does not survive a round trip.
package textfile

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/alem-hub/transcript-hub/internal/domain/transcript"
)

const (
	fieldSeparator = ","
	fieldCount     = 5
)

// DecodeStats counts course rows that were kept or dropped while decoding.
type DecodeStats = transcript.LoadStats

// Encode writes t in the text format.
func Encode(w io.Writer, t *transcript.Transcript) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(t.StudentName() + "\n"); err != nil {
		return fmt.Errorf("write student name: %w", err)
	}

	for _, sem := range t.Semesters() {
		for _, c := range sem.Courses() {
			line := strings.Join([]string{
				sem.ID(),
				c.Code,
				c.Name,
				strconv.Itoa(c.Credits),
				c.Grade,
			}, fieldSeparator)
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return fmt.Errorf("write course %s/%s: %w", sem.ID(), c.Code, err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Marshal returns the text encoding of t.
func Marshal(t *transcript.Transcript) []byte {
	var buf bytes.Buffer
	// bytes.Buffer never fails on write.
	_ = Encode(&buf, t)
	return buf.Bytes()
}

// Decode reads a transcript in the text format.
//
// The first line is the student name, taken verbatim (empty when the input
// is empty). Every following line is one course row. A row is kept only when
// it has a course code and its credits field is empty or a non-negative
// integer; anything else is dropped and counted in the returned stats. Lines
// have no length limit. Decode only fails on read errors.
func Decode(r io.Reader) (*transcript.Transcript, DecodeStats, error) {
	var stats DecodeStats
	br := bufio.NewReader(r)

	name, eof, err := readLine(br)
	if err != nil {
		return nil, stats, fmt.Errorf("read transcript: %w", err)
	}
	b := transcript.NewBuilder(name)

	for !eof {
		var line string
		line, eof, err = readLine(br)
		if err != nil {
			return nil, stats, fmt.Errorf("read transcript: %w", err)
		}
		if line == "" {
			continue
		}

		semesterID, course, ok := parseRow(line)
		if !ok {
			stats.Skipped++
			continue
		}
		b.Course(semesterID, course)
		stats.Accepted++
	}

	return b.Build(), stats, nil
}

// readLine returns the next line without its "\n" or "\r\n" terminator.
// eof is true once the input is exhausted.
func readLine(br *bufio.Reader) (string, bool, error) {
	line, err := br.ReadString('\n')
	switch {
	case err == io.EOF:
		return strings.TrimSuffix(line, "\r"), true, nil
	case err != nil:
		return "", true, err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), false, nil
}

// Unmarshal decodes a transcript from data.
func Unmarshal(data []byte) (*transcript.Transcript, DecodeStats, error) {
	return Decode(bytes.NewReader(data))
}

// parseRow splits a course row into its five fields. Missing trailing fields
// are empty and anything after the fifth separator is ignored. A row without
// a course code is malformed.
func parseRow(line string) (string, transcript.Course, bool) {
	fields := strings.SplitN(line, fieldSeparator, fieldCount+1)
	for len(fields) < fieldCount {
		fields = append(fields, "")
	}

	if fields[1] == "" {
		return "", transcript.Course{}, false
	}
	credits, err := transcript.ParseCredits(fields[3])
	if err != nil {
		return "", transcript.Course{}, false
	}

	return fields[0], transcript.Course{
		Code:    fields[1],
		Name:    fields[2],
		Credits: credits,
		Grade:   fields[4],
	}, true
}

// Fingerprint returns a hex blake2b-256 digest identifying the content of t.
// Unlike the text encoding it also covers semesters without courses.
func Fingerprint(t *transcript.Transcript) string {
	h, _ := blake2b.New256(nil)

	fmt.Fprintf(h, "%s\n", t.StudentName())
	for _, sem := range t.Semesters() {
		fmt.Fprintf(h, "[%s]\n", sem.ID())
		for _, c := range sem.Courses() {
			fmt.Fprintf(h, "%s,%s,%s,%d,%s\n", sem.ID(), c.Code, c.Name, c.Credits, c.Grade)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
