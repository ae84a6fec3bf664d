package psp

import (
	"github.com/lumicrm/payments-backend/pkg/enums"
	pkgerrors "github.com/lumicrm/payments-backend/pkg/errors"
)

// Registry resolves the adapter for a schedule's provider. The set is closed
// at startup; there is no runtime registration.
type Registry struct {
	executors map[enums.PSPProvider]ChargeExecutor
}

// NewRegistry builds a registry from the provided adapters.
func NewRegistry(executors ...ChargeExecutor) *Registry {
	byProvider := make(map[enums.PSPProvider]ChargeExecutor, len(executors))
	for _, executor := range executors {
		if executor == nil {
			continue
		}
		byProvider[executor.Provider()] = executor
	}
	return &Registry{executors: byProvider}
}

// Executor returns the adapter for the provider.
func (r *Registry) Executor(provider enums.PSPProvider) (ChargeExecutor, error) {
	executor, ok := r.executors[provider]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no charge executor for provider").
			WithDetails(map[string]any{"provider": provider.String()})
	}
	return executor, nil
}

// Providers lists the providers with a configured adapter.
func (r *Registry) Providers() []enums.PSPProvider {
	providers := make([]enums.PSPProvider, 0, len(r.executors))
	for provider := range r.executors {
		providers = append(providers, provider)
	}
	return providers
}
