package record

import "github.com/google/uuid"

// IDGenerator produces the per-record identifier.
type IDGenerator interface {
	NewID() (string, error)
}

// IDFunc adapts a function to IDGenerator.
type IDFunc func() (string, error)

// NewID calls f.
func (f IDFunc) NewID() (string, error) { return f() }

// UUIDGenerator issues random version 4 UUIDs read from crypto/rand.
type UUIDGenerator struct{}

// NewID returns a new UUID in its canonical textual form.
func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
