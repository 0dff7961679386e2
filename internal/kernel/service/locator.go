package service

import "fmt"

// Locator is a write-once read-access handle over exactly one Registry.
// It exists so layers and services can look each other up without holding a
// reference to the orchestrator; the bind happens once at bootstrap.
type Locator struct {
	reg *Registry
}

// NewLocator returns an unbound locator.
func NewLocator() *Locator {
	return &Locator{}
}

// Bind attaches the locator to a registry. Binding twice is a developer
// error; the original binding stays in place.
func (l *Locator) Bind(reg *Registry) error {
	if l.reg != nil {
		return ErrAlreadyBound
	}
	if reg == nil {
		return fmt.Errorf("bind locator: nil registry")
	}
	l.reg = reg
	return nil
}

// Bound reports whether a registry has been attached.
func (l *Locator) Bound() bool {
	return l.reg != nil
}

// Get returns the named service. It fails if the locator is unbound, if the
// service is unknown, or if the service's init hook has not yet completed.
// The readiness check catches layers attached before InitializeServices.
func (l *Locator) Get(name string) (Service, error) {
	if l.reg == nil {
		return nil, ErrNotBound
	}

	svc, err := l.reg.Get(name)
	if err != nil {
		return nil, err
	}
	if !l.reg.Initialized(name) {
		return nil, fmt.Errorf("%w: %s (status %s)", ErrServiceNotReady, name, l.reg.Status(name))
	}
	return svc, nil
}
