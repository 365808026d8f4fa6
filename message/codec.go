package message

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is returned when a line cannot be parsed into a Message.
var ErrSyntax = errors.New("message syntax error")

// Parse decodes a single line of the text format. Each line holds a variant
// name; Point lines additionally carry x, y and the marker:
//
//	LineStart
//	Point 1 2 25
//	LineEnd
func Parse(line string) (Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrSyntax)
	}

	name, args := fields[0], fields[1:]
	if name == "Point" {
		return parsePoint(args)
	}

	var msg Message
	switch name {
	case "EndPoint":
		msg = EndPoint{}
	case "PolygonStart":
		msg = PolygonStart{}
	case "LineStart":
		msg = LineStart{}
	case "LineEnd":
		msg = LineEnd{}
	case "PolygonEnd":
		msg = PolygonEnd{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}

	if len(args) != 0 {
		return nil, fmt.Errorf("%w: %s takes no arguments", ErrSyntax, name)
	}
	return msg, nil
}

func parsePoint(args []string) (Message, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("%w: Point expects <x> <y> <marker>, got %d fields", ErrSyntax, len(args))
	}

	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: point x: %v", ErrSyntax, err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: point y: %v", ErrSyntax, err)
	}
	marker, err := strconv.ParseUint(args[2], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: point marker: %v", ErrSyntax, err)
	}

	return NewPoint(x, y, uint8(marker)), nil
}

// Decoder reads messages from a text stream, one per line. Blank lines and
// lines starting with '#' are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int

	lastErr    error
	latchedMsg Message
}

// MaxLineSize is the longest line a Decoder accepts.
const MaxLineSize = 1 << 20

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), MaxLineSize)
	return &Decoder{scanner: scanner}
}

// Next advances to the next message. It returns false at the end of the input
// or on the first error.
func (d *Decoder) Next() bool {
	if d.lastErr != nil {
		return false
	}

	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		msg, err := Parse(text)
		if err != nil {
			d.lastErr = fmt.Errorf("line %d: %w", d.line, err)
			return false
		}
		d.latchedMsg = msg
		return true
	}

	if err := d.scanner.Err(); err != nil {
		d.lastErr = fmt.Errorf("line %d: read messages: %w", d.line+1, err)
	}
	return false
}

// Message returns the message latched by the last successful call to Next.
func (d *Decoder) Message() Message {
	return d.latchedMsg
}

// Error returns the first decoding error, if any.
func (d *Decoder) Error() error {
	return d.lastErr
}
