// Package service manages long-lived components: the capability contract,
// the insertion-ordered registry driving sequential init and shutdown, and
// the write-once locator giving process-wide read access to one registry.
package service

import (
	"context"
	"errors"
)

// Service is the contract every managed long-lived component implements.
// Hooks receive a context but the kernel awaits them one at a time; two
// services are never initializing concurrently.
type Service interface {
	// Name returns the unique identity the service registers under.
	Name() string

	// OnInitialize prepares the service for use.
	OnInitialize(ctx context.Context) error

	// OnShutdown releases the service's resources.
	OnShutdown(ctx context.Context) error
}

// Developer-misuse and lookup errors. These fail fast at the call site and
// are never retried.
var (
	ErrDuplicateService = errors.New("service already registered")
	ErrServiceNotFound  = errors.New("service not found")
	ErrServiceNotReady  = errors.New("service not yet initialized")
	ErrNotBound         = errors.New("locator not bound to a registry")
	ErrAlreadyBound     = errors.New("locator already bound")
)
