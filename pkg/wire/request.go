// Package wire frames raw usersvc requests and renders responses.
//
// The protocol borrows the shape of HTTP/1.1 but none of its semantics: only
// the method and path of the request line and the bytes after the final
// blank line are consumed. Headers are never read.
package wire

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultBufferSize is the size of the single read used to frame a request.
const DefaultBufferSize = 1024

const bodySeparator = "\r\n\r\n"

var (
	// ErrEmptyRequest is returned when the peer closed without sending anything.
	ErrEmptyRequest = errors.New("empty request")

	// ErrInvalidID is returned when a path identifier is not an int32.
	ErrInvalidID = errors.New("invalid id")
)

// Request is the framed view of one inbound request.
type Request struct {
	Method string // first token of the request line
	Path   string // second token of the request line, verbatim
	Line   string // request line without its terminator
	Body   []byte // bytes after the final blank line
	Raw    string // the whole buffer as text
}

// ReadRequest frames the request available from a single read of r.
//
// A short read produces a truncated frame; it is not detected.
func ReadRequest(r io.Reader, size int) (*Request, error) {
	if size <= 0 {
		size = DefaultBufferSize
	}

	buf := make([]byte, size)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			return nil, ErrEmptyRequest
		}
		return nil, errors.Wrap(err, "failed to read request")
	}

	return Frame(buf[:n]), nil
}

// Frame builds a Request from a raw buffer. It never fails; missing parts
// are left empty.
func Frame(raw []byte) *Request {
	text := strings.ToValidUTF8(string(raw), "�")

	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")

	req := &Request{
		Line: line,
		Body: []byte(ExtractBody(text)),
		Raw:  text,
	}

	fields := strings.Fields(line)
	if len(fields) > 0 {
		req.Method = fields[0]
	}
	if len(fields) > 1 {
		req.Path = fields[1]
	}

	return req
}

// ExtractID returns the third "/"-separated segment of path, cut at the
// first whitespace. It returns "" when the segment is missing.
func ExtractID(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return ""
	}
	fields := strings.Fields(parts[2])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ExtractBody returns the text after the last blank line, or "" when the
// buffer has no header/body boundary.
func ExtractBody(raw string) string {
	i := strings.LastIndex(raw, bodySeparator)
	if i < 0 {
		return ""
	}
	return raw[i+len(bodySeparator):]
}

// ParseID parses a path identifier.
func ParseID(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidID, "%q", s)
	}
	return int32(n), nil
}
