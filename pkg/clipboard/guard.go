package clipboard

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"
)

// DefaultTTL is how long a copied secret stays on the clipboard.
const DefaultTTL = 20 * time.Second

// Guard clears copied secrets from the clipboard after a fixed exposure
// window. At most one clear is pending per Guard: copying again cancels
// the previous schedule and arms a new one for the latest secret.
//
// On expiry the clipboard is cleared only if it still holds the armed
// secret. If the user copied something else in the meantime, their
// clipboard is left untouched. The comparison works on SHA-256
// fingerprints in constant time; the Guard never retains the secret
// itself.
type Guard struct {
	clip Clipboard
	ttl  time.Duration

	mu      sync.Mutex
	pending *pendingClear
}

type pendingClear struct {
	fingerprint [sha256.Size]byte
	timer       *time.Timer
	done        chan struct{}
}

// NewGuard returns a Guard over clip. A non-positive ttl selects
// DefaultTTL.
func NewGuard(clip Clipboard, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{clip: clip, ttl: ttl}
}

// TTL returns the configured exposure window.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Copy writes the secret to the clipboard and arms the clear schedule.
// The returned channel closes once the exposure window has elapsed and
// the clear decision has run, or immediately if a later Copy supersedes
// this one. Nothing is placed on the clipboard when the write fails.
func (g *Guard) Copy(secret []byte) (<-chan struct{}, error) {
	if err := g.clip.WriteText(string(secret)); err != nil {
		return nil, err
	}
	return g.arm(secret), nil
}

// arm schedules the clear for secret, superseding any pending schedule.
func (g *Guard) arm(secret []byte) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending != nil {
		g.pending.timer.Stop()
		close(g.pending.done)
	}

	p := &pendingClear{
		fingerprint: sha256.Sum256(secret),
		done:        make(chan struct{}),
	}
	p.timer = time.AfterFunc(g.ttl, func() { g.expire(p) })
	g.pending = p
	return p.done
}

// expire runs at the deadline of one schedule. Stop on a fired timer is
// a no-op, so a supersede can race in here; the pending check below
// makes the superseded schedule bow out without touching the clipboard.
func (g *Guard) expire(p *pendingClear) {
	g.mu.Lock()
	if g.pending != p {
		g.mu.Unlock()
		return
	}
	g.pending = nil
	g.mu.Unlock()

	defer close(p.done)

	current, err := g.clip.ReadText()
	if err != nil {
		return
	}
	fingerprint := sha256.Sum256([]byte(current))
	if subtle.ConstantTimeCompare(fingerprint[:], p.fingerprint[:]) == 1 {
		_ = g.clip.Clear()
	}
}

// ClearNow cancels any pending schedule and clears the clipboard
// unconditionally. Used on process shutdown so a secret never outlives
// the session that copied it.
func (g *Guard) ClearNow() error {
	g.mu.Lock()
	if g.pending != nil {
		g.pending.timer.Stop()
		close(g.pending.done)
		g.pending = nil
	}
	g.mu.Unlock()

	return g.clip.Clear()
}
