package factory

import (
	"context"
	"fmt"
	"sort"

	"TrafficSentinel/internal/config"
	"TrafficSentinel/internal/model"

	"go.uber.org/zap"
)

// WriterFactory creates a writer from its config entry.
type WriterFactory func(ctx context.Context, def config.WriterDef, logger *zap.Logger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the names of all registered writer types, sorted.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds every enabled writer of the config. On error, writers that
// were already created are closed.
func Create(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		logger.Info("creating writer", zap.String("type", def.Type))

		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}

		w, err := factory(ctx, def, logger)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}

	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		w.Close()
	}
}
