package flags

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// Getter reads one flag.
type Getter interface {
	Get(ctx context.Context, key string) (*Flag, error)
}

// ActionFlagKey is the kill-switch for kind, e.g. actions.swap.disabled.
func ActionFlagKey(kind models.ActionKind) string {
	return fmt.Sprintf("actions.%s.disabled", kind)
}

// ActionGate blocks action kinds whose kill-switch is set. When the flag
// store cannot be read the action is allowed.
type ActionGate struct {
	flags  Getter
	logger *logrus.Logger
}

// NewActionGate treats a nil *Store like a nil Getter: every action is allowed.
func NewActionGate(flags Getter, logger *logrus.Logger) *ActionGate {
	if s, ok := flags.(*Store); ok && s == nil {
		flags = nil
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ActionGate{flags: flags, logger: logger}
}

// Allow returns ErrActionDisabled when kind is switched off.
func (g *ActionGate) Allow(ctx context.Context, kind models.ActionKind) error {
	if g == nil || g.flags == nil {
		return nil
	}
	key := ActionFlagKey(kind)
	f, err := g.flags.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		g.logger.WithError(err).WithField("flag", key).Warn("flag store unavailable; allowing action")
		return nil
	case f.Value:
		return fmt.Errorf("%w: %s", ErrActionDisabled, kind)
	default:
		return nil
	}
}
