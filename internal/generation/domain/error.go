package domain

import "errors"

var (
	ErrGenerationNotFound = errors.New("generation not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
