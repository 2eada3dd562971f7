package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    User
		wantErr bool
	}{
		{
			name: "null id",
			body: `{"id":null,"name":"Ann","email":"ann@x.com"}`,
			want: User{Name: "Ann", Email: "ann@x.com"},
		},
		{
			name: "missing id",
			body: `{"name":"Ann2","email":"a2@x.com"}`,
			want: User{Name: "Ann2", Email: "a2@x.com"},
		},
		{
			name: "numeric id is kept",
			body: `{"id":7,"name":"Bo","email":"bo@x.com"}`,
			want: NewUser(7, "Bo", "bo@x.com"),
		},
		{
			name: "unknown fields ignored",
			body: `{"name":"Cy","email":"cy@x.com","age":40}`,
			want: User{Name: "Cy", Email: "cy@x.com"},
		},
		{
			name: "surrounding whitespace",
			body: "\n  {\"name\":\"Di\",\"email\":\"di@x.com\"}  \n",
			want: User{Name: "Di", Email: "di@x.com"},
		},
		{
			name: "escaped strings",
			body: `{"name":"A\"nn","email":"a@x.com"}`,
			want: User{Name: `A"nn`, Email: "a@x.com"},
		},
		{name: "empty body", body: "", wantErr: true},
		{name: "malformed", body: `{"name":"Ann",`, wantErr: true},
		{name: "trailing garbage", body: `{"name":"Ann","email":"a@x.com"}xyz`, wantErr: true},
		{name: "array", body: `[{"name":"Ann","email":"a@x.com"}]`, wantErr: true},
		{name: "missing email", body: `{"name":"Ann"}`, wantErr: true},
		{name: "null name", body: `{"name":null,"email":"a@x.com"}`, wantErr: true},
		{name: "numeric email", body: `{"name":"Ann","email":5}`, wantErr: true},
		{name: "string id", body: `{"id":"1","name":"Ann","email":"a@x.com"}`, wantErr: true},
		{name: "fractional id", body: `{"id":1.5,"name":"Ann","email":"a@x.com"}`, wantErr: true},
		{name: "id overflow", body: `{"id":4294967296,"name":"Ann","email":"a@x.com"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeUser([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidBody))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeUser(t *testing.T) {
	s, err := EncodeUser(NewUser(1, "Ann", "ann@x.com"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"Ann","email":"ann@x.com"}`, s)

	s, err = EncodeUser(User{Name: "Ann", Email: "ann@x.com"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":null,"name":"Ann","email":"ann@x.com"}`, s)
}

func TestEncodeUsers(t *testing.T) {
	s, err := EncodeUsers(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	s, err = EncodeUsers([]User{NewUser(1, "Ann", "ann@x.com"), NewUser(2, "Bo", "bo@x.com")})
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1,"name":"Ann","email":"ann@x.com"},{"id":2,"name":"Bo","email":"bo@x.com"}]`, s)
}
