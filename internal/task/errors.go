package task

import (
	"errors"
	"fmt"
)

// ErrValidation marks caller input that can never succeed as given.
var ErrValidation = errors.New("validation error")

// ErrInvalidRange is returned by Filter when DueFrom is after DueTo.
var ErrInvalidRange = fmt.Errorf("%w: due_from is after due_to", ErrValidation)
