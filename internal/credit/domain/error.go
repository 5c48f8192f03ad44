package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidUser         = errors.New("invalid user")
	ErrInvalidGeneration   = errors.New("invalid generation")
)

// InsufficientCreditsError carries the balance detail clients render.
type InsufficientCreditsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}
