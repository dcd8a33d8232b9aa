package flags

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("flag not found")
	ErrInvalidKey     = errors.New("invalid flag key")
	ErrActionDisabled = errors.New("action disabled")
)

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
