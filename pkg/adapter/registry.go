package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/dsg/pkg/core"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a backend factory under kind.
// Called by backend implementations in their init() functions.
func Register(kind string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(kind)] = factory
}

// Get retrieves a backend factory by kind.
func Get(kind string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(kind)]
	return f, ok
}

// Resolve returns the Executor for info.Kind.
// An empty or unregistered kind fails with a *core.ConfigurationError naming the kind.
// A nil logger is replaced with a discard logger.
func Resolve(info core.ConnectionInfo, logger *slog.Logger) (Executor, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if info.Kind == "" {
		return nil, &core.ConfigurationError{
			Subject: "connection.type",
			Message: "connection type not specified",
		}
	}

	factory, ok := Get(info.Kind)
	if !ok {
		return nil, &core.ConfigurationError{
			Subject: "connection.type",
			Err: &UnknownAdapterError{
				Kind:      info.Kind,
				Available: ListAdapters(),
			},
		}
	}

	exec, err := factory(info, logger.With("adapter", strings.ToLower(info.Kind)))
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved connection", "type", exec.Kind())
	return exec, nil
}

// ListAdapters returns all registered backend kinds (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend kind is registered.
func IsRegistered(kind string) bool {
	_, ok := Get(kind)
	return ok
}

// UnknownAdapterError is returned when an unknown connection kind is requested.
type UnknownAdapterError struct {
	Kind      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unsupported connection type %q (available: %s); check connection.type in dsg.yml",
		e.Kind, strings.Join(e.Available, ", "))
}
