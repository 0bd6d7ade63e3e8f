// Package uuid generates and validates the time-ordered identifiers used as
// primary keys for every ledger row, event and request.
package uuid

import (
	"errors"

	googleuuid "github.com/google/uuid"
)

// ErrNil is returned by Parse for the all-zero UUID, which never names a row.
var ErrNil = errors.New("uuid: nil uuid")

// New generates a UUIDv7. The leading 48 bits hold the Unix time in
// milliseconds, so IDs sort by creation time.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates s and returns its canonical lower-case form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	if parsed == googleuuid.Nil {
		return "", ErrNil
	}
	return parsed.String(), nil
}
