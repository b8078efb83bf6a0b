/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package access

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("no such session")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")

	// ErrNotPending is returned for a second answer to an already resolved challenge.
	ErrNotPending = fmt.Errorf("%w: challenge already resolved", ErrInvalidState)
)
