package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cleared-dev/mailtx/internal/model"
)

// maxLine bounds a single JSONL record; HTML bodies can be large.
const maxLine = 16 << 20

// JSONReader reads a batch stored as one JSON array of mails.
type JSONReader struct{}

// Format returns the file extension handled.
func (JSONReader) Format() string { return "json" }

// Read decodes the array. An empty file is an empty batch.
func (JSONReader) Read(r io.Reader) ([]model.RawMail, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON batch: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var mails []model.RawMail
	if err := json.Unmarshal(data, &mails); err != nil {
		return nil, fmt.Errorf("decoding JSON batch: %w", err)
	}
	return mails, nil
}

// JSONLReader reads a batch stored as one JSON mail per line.
type JSONLReader struct{}

// Format returns the file extension handled.
func (JSONLReader) Format() string { return "jsonl" }

// Read decodes every non-blank line.
func (JSONLReader) Read(r io.Reader) ([]model.RawMail, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var mails []model.RawMail
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var m model.RawMail
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("line %d: decoding mail: %w", line, err)
		}
		mails = append(mails, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL batch: %w", err)
	}
	return mails, nil
}
