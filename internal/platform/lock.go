package platform

import (
	"errors"
	"strings"
)

// ErrLockHeld indicates another process already owns the lock.
var ErrLockHeld = errors.New("lock is held by another process")

// ErrLockUnsupported indicates the current platform has no lock backend implementation.
var ErrLockUnsupported = errors.New("process lock unsupported")

// Lock is an acquired cross-process lock. It is dropped by the OS when the
// owning process exits.
type Lock interface {
	Release() error
}

// AcquireRelayLock takes the lock guarding one relay target. A relay accepts a
// single host link, so two processes must not drive the same target. Different
// targets lock independently.
func AcquireRelayLock(appID, target string) (Lock, error) {
	return acquireLock(
		normalizeLockComponent(appID, "app"),
		normalizeLockComponent(target, "default"),
	)
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
