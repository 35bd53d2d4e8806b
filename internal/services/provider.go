package services

import (
	"context"
)

// Provider is a backing dependency whose health gates readiness
type Provider interface {
	// Type returns the provider type name
	Type() string

	// HealthCheck checks if the dependency is available
	HealthCheck(ctx context.Context) error

	// Close releases the provider's connections
	Close() error
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	serviceType string
}

// Type returns the service type
func (p *BaseProvider) Type() string {
	return p.serviceType
}

// FuncProvider adapts a check function into a Provider
type FuncProvider struct {
	BaseProvider
	check func(ctx context.Context) error
}

// NewFuncProvider creates a provider backed by check
func NewFuncProvider(serviceType string, check func(ctx context.Context) error) *FuncProvider {
	return &FuncProvider{BaseProvider: BaseProvider{serviceType: serviceType}, check: check}
}

func (p *FuncProvider) HealthCheck(ctx context.Context) error {
	return p.check(ctx)
}

func (p *FuncProvider) Close() error { return nil }
