package transport

import (
	"sync"

	"github.com/golang/glog"
)

// Arbiter negotiates exclusive ownership of ports.
type Arbiter interface {
	// Claim requests ownership of port. It fails fast when the port is
	// owned or a claim is pending. Otherwise the returned channel
	// delivers the decision: nil once ownership is confirmed.
	// revoke is called if ownership is taken away later.
	Claim(port, owner string, revoke func()) (<-chan error, error)
	// Release gives up ownership.
	Release(port, owner string)
}

// GrantFunc decides a claim. It may block, e.g. while another process
// is asked to hand the port over.
type GrantFunc func(port, owner string) error

type claim struct {
	owner   string
	granted bool
	revoke  func()
}

// LocalArbiter arbitrates ports inside this process.
type LocalArbiter struct {
	// Grant decides claims, nil grants every claim.
	Grant GrantFunc

	claims map[string]*claim
	lock   sync.Mutex
}

// DefaultArbiter is used by ports without an Arbiter.
var DefaultArbiter = &LocalArbiter{}

// Claim implements Arbiter.
func (a *LocalArbiter) Claim(port, owner string, revoke func()) (<-chan error, error) {
	a.lock.Lock()
	if a.claims == nil {
		a.claims = make(map[string]*claim)
	}
	if c := a.claims[port]; c != nil {
		a.lock.Unlock()
		return nil, &PortBusyError{Port: port, Owner: c.owner}
	}
	c := &claim{owner: owner, revoke: revoke}
	a.claims[port] = c
	grant := a.Grant
	a.lock.Unlock()

	resultCh := make(chan error, 1)
	go func() {
		var err error
		if grant != nil {
			err = grant(port, owner)
		}
		a.lock.Lock()
		if a.claims[port] != c {
			// released or revoked while pending.
			if err == nil {
				err = ErrClosed
			}
		} else if err != nil {
			delete(a.claims, port)
		} else {
			c.granted = true
		}
		a.lock.Unlock()
		resultCh <- err
	}()
	return resultCh, nil
}

// Release implements Arbiter.
func (a *LocalArbiter) Release(port, owner string) {
	a.lock.Lock()
	if c := a.claims[port]; c != nil && c.owner == owner {
		delete(a.claims, port)
	}
	a.lock.Unlock()
}

// Revoke takes the port away from its owner.
func (a *LocalArbiter) Revoke(port string) {
	a.lock.Lock()
	c := a.claims[port]
	delete(a.claims, port)
	a.lock.Unlock()
	if c != nil && c.granted && c.revoke != nil {
		glog.Warningf("port %s revoked from %s", port, c.owner)
		c.revoke()
	}
}

// Owner returns the confirmed owner of port.
func (a *LocalArbiter) Owner(port string) (string, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if c := a.claims[port]; c != nil && c.granted {
		return c.owner, true
	}
	return "", false
}
