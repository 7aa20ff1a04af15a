package userstore

import (
	"errors"
	"fmt"
)

type (
	InvalidConfiguration struct {
		Reason string
	}
)

var (
	ErrNotReady           = errors.New("userstore: not initialized")
	ErrAlreadyInitialized = errors.New("userstore: initialize called more than once")
	ErrClosed             = errors.New("userstore: closed")
)

func (i InvalidConfiguration) Error() string {
	return fmt.Sprintf("userstore: invalid configuration, %v", i.Reason)
}
