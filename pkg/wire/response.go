package wire

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Status is one of the three response classes the service produces.
type Status int

const (
	StatusOK                  Status = 200
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
)

// Fixed response bodies.
const (
	BodyNotFound      = "Not Found"
	BodyUserNotFound  = "USER NOT FOUND"
	BodyInternalError = "Internal Server Error"
)

const headerBlock = "\r\nContent-Type: application/json\r\n\r\n"

// StatusLine returns the fixed status line. Unknown statuses render as 500.
func (s Status) StatusLine() string {
	switch s {
	case StatusOK:
		return "HTTP/1.1 200 OK"
	case StatusNotFound:
		return "HTTP/1.1 404 NOT FOUND"
	default:
		return "HTTP/1.1 500 INTERNAL SERVER ERROR"
	}
}

// Code returns the numeric status, normalized to the three known classes.
func (s Status) Code() int {
	switch s {
	case StatusOK, StatusNotFound:
		return int(s)
	default:
		return int(StatusInternalServerError)
	}
}

func (s Status) String() string {
	return strconv.Itoa(s.Code())
}

// StatusFromCode maps an HTTP status code onto a Status.
func StatusFromCode(code int) Status {
	switch code {
	case 200:
		return StatusOK
	case 404:
		return StatusNotFound
	default:
		return StatusInternalServerError
	}
}

// Response is a status and body pair.
type Response struct {
	Status Status
	Body   string
}

// OK returns a 200 response.
func OK(body string) Response {
	return Response{Status: StatusOK, Body: body}
}

// NotFound returns a 404 response.
func NotFound(body string) Response {
	return Response{Status: StatusNotFound, Body: body}
}

// InternalError returns the fixed 500 response.
func InternalError() Response {
	return Response{Status: StatusInternalServerError, Body: BodyInternalError}
}

// Bytes renders the response in wire format.
func (r Response) Bytes() []byte {
	var b strings.Builder
	b.Grow(len(r.Body) + 64)
	b.WriteString(r.Status.StatusLine())
	b.WriteString(headerBlock)
	b.WriteString(r.Body)
	return []byte(b.String())
}

// WriteResponse writes the rendered response with a single Write.
func WriteResponse(w io.Writer, r Response) error {
	if _, err := w.Write(r.Bytes()); err != nil {
		return errors.Wrap(err, "failed to write response")
	}
	return nil
}

// ParseResponse is the client-side inverse of Response.Bytes.
func ParseResponse(raw []byte) (Response, error) {
	text := string(raw)

	line := text
	if i := strings.Index(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return Response{}, errors.Errorf("malformed status line %q", line)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return Response{}, errors.Wrapf(err, "malformed status code %q", fields[1])
	}

	var body string
	if i := strings.Index(text, bodySeparator); i >= 0 {
		body = text[i+len(bodySeparator):]
	}

	return Response{Status: StatusFromCode(code), Body: body}, nil
}
