// Package client speaks the usersvc protocol: one request per connection,
// the response is read until the server closes.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/ssargent/usersvc/pkg/model"
	"github.com/ssargent/usersvc/pkg/wire"
)

// DefaultTimeout bounds a whole round trip when the context has no deadline.
const DefaultTimeout = 10 * time.Second

// StatusError is returned by the typed helpers for a non-200 reply.
type StatusError struct {
	Response wire.Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server replied %d: %s", e.Response.Status.Code(), e.Response.Body)
}

// Client sends requests to a usersvc server.
type Client struct {
	Addr    string
	Timeout time.Duration
	dialer  net.Dialer
}

// New creates a client for addr.
func New(addr string) *Client {
	return &Client{Addr: addr, Timeout: DefaultTimeout}
}

// Do sends one request and returns the parsed reply.
func (c *Client) Do(ctx context.Context, method, path, body string) (wire.Response, error) {
	if _, ok := ctx.Deadline(); !ok && c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return wire.Response{}, errors.Wrapf(err, "failed to connect to %s", c.Addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(encodeRequest(method, path, body)); err != nil {
		return wire.Response{}, errors.Wrap(err, "failed to send request")
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return wire.Response{}, errors.Wrap(err, "failed to read response")
	}
	if len(raw) == 0 {
		return wire.Response{}, errors.New("server closed without replying")
	}

	return wire.ParseResponse(raw)
}

// List returns every user.
func (c *Client) List(ctx context.Context) ([]model.User, error) {
	resp, err := c.expectOK(ctx, "GET", "/users", "")
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(resp.Body) || !gjson.Parse(resp.Body).IsArray() {
		return nil, errors.Errorf("unexpected list body %q", resp.Body)
	}

	var users []model.User
	for _, item := range gjson.Parse(resp.Body).Array() {
		u, err := decodeStored(item.Raw)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Get returns one user.
func (c *Client) Get(ctx context.Context, id int32) (model.User, error) {
	resp, err := c.expectOK(ctx, "GET", userPath(id), "")
	if err != nil {
		return model.User{}, err
	}
	return decodeStored(resp.Body)
}

// Create stores a new user.
func (c *Client) Create(ctx context.Context, name, email string) error {
	body, err := model.EncodeUser(model.User{Name: name, Email: email})
	if err != nil {
		return err
	}
	_, err = c.expectOK(ctx, "POST", "/user", body)
	return err
}

// Update overwrites the name and email of user id.
func (c *Client) Update(ctx context.Context, id int32, name, email string) error {
	body, err := model.EncodeUser(model.User{Name: name, Email: email})
	if err != nil {
		return err
	}
	_, err = c.expectOK(ctx, "PUT", userPath(id), body)
	return err
}

// Delete removes user id.
func (c *Client) Delete(ctx context.Context, id int32) error {
	_, err := c.expectOK(ctx, "DELETE", userPath(id), "")
	return err
}

func (c *Client) expectOK(ctx context.Context, method, path, body string) (wire.Response, error) {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return wire.Response{}, err
	}
	if resp.Status != wire.StatusOK {
		return resp, &StatusError{Response: resp}
	}
	return resp, nil
}

func encodeRequest(method, path, body string) []byte {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(path)
	b.WriteString(" HTTP/1.1\r\nContent-Type: application/json\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.WriteString(body)
	return []byte(b.String())
}

func userPath(id int32) string {
	return fmt.Sprintf("/user/%d", id)
}

// decodeStored decodes a user returned by the server, which always has an id.
func decodeStored(raw string) (model.User, error) {
	u, err := model.DecodeUser([]byte(raw))
	if err != nil {
		return model.User{}, err
	}
	if u.ID == nil {
		return model.User{}, errors.Errorf("stored user without id: %s", raw)
	}
	return u, nil
}
