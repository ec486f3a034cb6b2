// Package sloghooks emits queryfx hook events through log/slog. Keys are
// redacted by default since canonical keys embed request payloads; the
// noisy events support sampling.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/queryfx"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RefetchFailEvery  uint64
	TypeMismatchEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	refetchCtr  atomic.Uint64
	mismatchCtr atomic.Uint64
}

var _ queryfx.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RecoveryApplied(method string, code int) {
	if h.l == nil {
		return
	}
	h.l.Info("queryfx.recovery_applied",
		"method", method,
		"code", code)
}

func (h *Hooks) RollbackFailed(method string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("queryfx.rollback_failed",
		"method", method,
		"err", err)
}

func (h *Hooks) CancelNotAcked(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("queryfx.cancel_not_acked",
		"key", h.redact(key))
}

func (h *Hooks) RefetchFailed(key string, err error) {
	if h.l == nil || !sample(h.opts.RefetchFailEvery, &h.refetchCtr) {
		return
	}
	h.l.Warn("queryfx.refetch_failed",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) TypeMismatch(key string) {
	if h.l == nil || !sample(h.opts.TypeMismatchEvery, &h.mismatchCtr) {
		return
	}
	h.l.Warn("queryfx.type_mismatch",
		"key", h.redact(key))
}
