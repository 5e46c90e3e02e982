package process

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Parser is an interface for consuming the textual output of a process
// line by line.
type Parser interface {
	// Parse parses the given line. The line doesn't include any newline
	// character. A non-nil error stops the scanning.
	Parse(line []byte) error

	// Reset resets any collected data. This is called before
	// the first line is given to the parser.
	Reset()
}

// Scan reads r line by line and hands every line to the parser. Lines can be
// terminated by \r, \n, or \r\n. Empty lines are handed over as well, such
// that a parser can count physical lines.
func Scan(r io.Reader, p Parser) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	scanner.Split(scanLines)

	p.Reset()

	for scanner.Scan() {
		if err := p.Parse(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading output: %w", err)
	}

	return nil
}

// scanLines splits the data on \r, \n, or \r\n line endings. Empty lines are
// returned as empty tokens.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		if atEOF {
			return len(data), data, nil
		}

		// Request more data.
		return 0, nil, nil
	}

	if data[i] == '\n' {
		return i + 1, data[:i], nil
	}

	// A \r at the end of the buffer may be followed by a \n.
	if i+1 == len(data) && !atEOF {
		return 0, nil, nil
	}

	if i+1 < len(data) && data[i+1] == '\n' {
		return i + 2, data[:i], nil
	}

	return i + 1, data[:i], nil
}
