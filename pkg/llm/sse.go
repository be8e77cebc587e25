package llm

import (
	"bufio"
	"io"
	"strings"
)

// lineReader reads newline-delimited records from a streaming body.
// Both SSE ("data: {...}") and NDJSON bodies are read with it.
type lineReader struct {
	reader *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next non-blank line without its terminator.
// A final line without a trailing newline is still returned before io.EOF.
func (l *lineReader) next() (string, error) {
	for {
		line, err := l.reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// nextData returns the payload of the next "data:" line. Event names,
// comments and other SSE fields are skipped.
func (l *lineReader) nextData() (string, error) {
	for {
		line, err := l.next()
		if err != nil {
			return "", err
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok || field != "data" {
			continue
		}
		return strings.TrimSpace(value), nil
	}
}
