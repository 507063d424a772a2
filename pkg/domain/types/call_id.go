package types

import (
	"context"

	"github.com/google/uuid"
)

// CallID identifies one invocation of the call-safety pipeline. Every
// snapshot recorded by the monitor carries the CallID of the invocation
// that produced it.
type CallID string

func NewCallID(ctx context.Context) CallID {
	return CallID(newUUID(ctx))
}

func (id CallID) String() string {
	return string(id)
}

// IsValid checks if the CallID is valid
func (id CallID) IsValid() bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(string(id))
	return err == nil
}
