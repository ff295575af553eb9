// Package validate checks room names and usernames before they reach the
// registry, using the same structured-tag validator the teacher uses for
// its own request DTOs.
package validate

import (
	"github.com/go-playground/validator/v10"
)

var v = validator.New()

type roomName struct {
	Name string `validate:"required,min=1,max=64,excludesall=\x00, "`
}

// RoomName reports whether name is a legal room identifier: non-empty,
// bounded length, no NUL or comma (which would corrupt the LIST tail), no
// spaces.
func RoomName(name string) bool {
	return v.Struct(roomName{Name: name}) == nil
}

type username struct {
	Name string `validate:"required,min=1,max=64,excludesall=\x00, "`
}

// Username reports whether name is a legal SNS username, under the same
// constraints as a room name.
func Username(name string) bool {
	return v.Struct(username{Name: name}) == nil
}
