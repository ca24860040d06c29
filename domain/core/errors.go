package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrColumnNotFound = fmt.Errorf("%w: column", ErrNotFound)

	ErrUnknownChartKind = errors.New("unknown chart kind")
	ErrUnknownStage     = errors.New("unknown stage")
)
