package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/constants"
	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

// Writeback persists discovered records off the request path. Each dispatch
// runs in its own goroutine with its own deadline; failures are logged only.
type Writeback struct {
	saver   Saver
	timeout time.Duration
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

func NewWriteback(saver Saver, timeout time.Duration, logger *logrus.Logger) *Writeback {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = constants.WritebackTimeout
	}
	return &Writeback{saver: saver, timeout: timeout, logger: logger}
}

// Dispatch returns immediately.
func (w *Writeback) Dispatch(records []Record) {
	if w == nil || w.saver == nil || len(records) == 0 {
		return
	}
	rows := make([]models.TokenMetadata, 0, len(records))
	for _, r := range records {
		if r.Found {
			rows = append(rows, r.Model())
		}
	}
	if len(rows) == 0 {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				w.logger.WithField("panic", fmt.Sprint(p)).Error("metadata writeback panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.saver.InsertMissing(ctx, rows); err != nil {
			w.logger.WithError(err).WithField("rows", len(rows)).Warn("metadata writeback failed")
			return
		}
		w.logger.WithField("rows", len(rows)).Debug("metadata written back")
	}()
}

// Wait blocks until in-flight dispatches finish. Used on shutdown and in tests.
func (w *Writeback) Wait() {
	if w == nil {
		return
	}
	w.wg.Wait()
}
