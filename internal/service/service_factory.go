package service

import (
	"sync"

	"go.uber.org/zap"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	deps   Dependencies
	logger *zap.Logger

	once        sync.Once
	authService *AuthService
}

func NewServiceFactory(deps Dependencies, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{deps: deps, logger: logger}
}

// AuthService returns the auth service instance (singleton)
func (f *ServiceFactory) AuthService() *AuthService {
	f.once.Do(func() {
		f.authService = NewAuthService(f.deps, WithLogger(f.logger))
	})
	return f.authService
}

// Cleanup flushes pending security events
func (f *ServiceFactory) Cleanup() {
	if closer, ok := f.deps.Audit.(interface{ Close() }); ok {
		closer.Close()
	}
}
