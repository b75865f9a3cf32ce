package datasource

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/logging"
)

// Manager caches one QueryExecutor per datasource so retried queries and
// metadata refreshes reuse the same connection pool instead of redialing.
// Introspectors are deliberately not cached: a refresh opens one, reads the
// schema and closes it.
type Manager struct {
	mu      sync.Mutex
	factory Factory
	logger  *zap.Logger
	execs   map[uuid.UUID]QueryExecutor
}

// NewManager creates a Manager. A nil logger becomes a no-op.
func NewManager(factory Factory, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		factory: factory,
		logger:  logger,
		execs:   make(map[uuid.UUID]QueryExecutor),
	}
}

// Executor returns the cached executor for the datasource, opening one on
// first use. The returned executor is shared; callers must not Close it.
func (m *Manager) Executor(ctx context.Context, datasourceID uuid.UUID, dsType, connStr string) (QueryExecutor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exec, ok := m.execs[datasourceID]; ok {
		return exec, nil
	}

	exec, err := m.factory.NewQueryExecutor(ctx, dsType, connStr)
	if err != nil {
		return nil, err
	}

	m.logger.Info("opened datasource connection",
		zap.String("datasource_id", datasourceID.String()),
		zap.String("type", dsType),
		zap.String("connection", logging.SanitizeConnectionString(connStr)))

	m.execs[datasourceID] = exec
	return exec, nil
}

// Invalidate closes and forgets the cached executor for a datasource, so the
// next Executor call redials. Used when a connection goes bad.
func (m *Manager) Invalidate(datasourceID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if exec, ok := m.execs[datasourceID]; ok {
		if err := exec.Close(); err != nil {
			m.logger.Warn("closing invalidated executor",
				zap.String("datasource_id", datasourceID.String()),
				zap.Error(err))
		}
		delete(m.execs, datasourceID)
	}
}

// CloseAll closes every cached executor. The Manager stays usable; the next
// Executor call reopens.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, exec := range m.execs {
		if err := exec.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.execs, id)
	}
	return errors.Join(errs...)
}
