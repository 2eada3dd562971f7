// Package model defines the user record served by usersvc and its JSON form.
package model

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ErrInvalidBody is returned when a request body is not a user object.
var ErrInvalidBody = errors.New("invalid user body")

// User is a row of the users table.
//
// ID is nil on input records and always set on stored ones.
type User struct {
	ID    *int32 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUser returns a stored user with the given id.
func NewUser(id int32, name, email string) User {
	return User{ID: &id, Name: name, Email: email}
}

// DecodeUser parses a request body into a User.
//
// The body must be a single JSON object with string "name" and "email"
// fields. "id" may be absent, null or an int32; it is never trusted.
// Unknown fields are ignored.
func DecodeUser(body []byte) (User, error) {
	if !gjson.ValidBytes(body) {
		return User{}, errors.Wrap(ErrInvalidBody, "malformed json")
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return User{}, errors.Wrap(ErrInvalidBody, "body is not an object")
	}

	var u User

	if id := doc.Get("id"); id.Exists() && id.Type != gjson.Null {
		if id.Type != gjson.Number {
			return User{}, errors.Wrapf(ErrInvalidBody, "id: unexpected %s", id.Type)
		}
		n, err := strconv.ParseInt(id.Raw, 10, 32)
		if err != nil {
			return User{}, errors.Wrapf(ErrInvalidBody, "id: %v", err)
		}
		v := int32(n)
		u.ID = &v
	}

	name, err := stringField(doc, "name")
	if err != nil {
		return User{}, err
	}
	email, err := stringField(doc, "email")
	if err != nil {
		return User{}, err
	}

	u.Name = name
	u.Email = email
	return u, nil
}

func stringField(doc gjson.Result, key string) (string, error) {
	v := doc.Get(key)
	if !v.Exists() {
		return "", errors.Wrapf(ErrInvalidBody, "missing field %q", key)
	}
	if v.Type != gjson.String {
		return "", errors.Wrapf(ErrInvalidBody, "%s: unexpected %s", key, v.Type)
	}
	return v.Str, nil
}

// EncodeUser serializes a single user.
func EncodeUser(u User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode user")
	}
	return string(b), nil
}

// EncodeUsers serializes a list of users. A nil slice encodes as [].
func EncodeUsers(users []User) (string, error) {
	if users == nil {
		users = []User{}
	}
	b, err := json.Marshal(users)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode users")
	}
	return string(b), nil
}
