// Package services wires resolution, retry and suggestion together into the
// engine's query execution surface.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/adapters/datasource"
	"github.com/queryscope/queryscope-engine/pkg/logging"
	"github.com/queryscope/queryscope-engine/pkg/resolver"
	"github.com/queryscope/queryscope-engine/pkg/retry"
)

// Datasource identifies a database the engine runs queries against.
type Datasource struct {
	ID      uuid.UUID
	Type    string // "postgres" or "mssql"
	ConnStr string
}

// VocabularyCache keeps one schema-name resolver per datasource and refreshes
// it from the live schema on demand. Refreshes for the same datasource are
// serialized; resolution reads stay lock-free on the resolver's snapshot.
type VocabularyCache struct {
	mu        sync.Mutex
	factory   datasource.Factory
	threshold int
	logger    *zap.Logger
	entries   map[uuid.UUID]*vocabularyEntry
}

type vocabularyEntry struct {
	refreshMu sync.Mutex
	resolver  *resolver.Resolver
}

// NewVocabularyCache creates a cache. threshold is the minimum resolution
// score (<= 0 falls back to the resolver default); a nil logger is a no-op.
func NewVocabularyCache(factory datasource.Factory, threshold int, logger *zap.Logger) *VocabularyCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VocabularyCache{
		factory:   factory,
		threshold: threshold,
		logger:    logger,
		entries:   make(map[uuid.UUID]*vocabularyEntry),
	}
}

func (c *VocabularyCache) entry(id uuid.UUID) *vocabularyEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		e = &vocabularyEntry{resolver: resolver.New(c.threshold, c.logger)}
		c.entries[id] = e
	}
	return e
}

// Resolver returns the resolver for a datasource. The resolver starts with
// an empty vocabulary until the first Refresh.
func (c *VocabularyCache) Resolver(datasourceID uuid.UUID) *resolver.Resolver {
	return c.entry(datasourceID).resolver
}

// TableNames returns the tables the datasource's vocabulary currently knows.
func (c *VocabularyCache) TableNames(datasourceID uuid.UUID) []string {
	return c.entry(datasourceID).resolver.TableNames()
}

// Refresh re-derives the datasource's vocabulary from its live schema. It
// opens a fresh introspector, reads the full description and swaps it into
// the resolver. Concurrent refreshes for the same datasource queue up rather
// than introspecting in parallel.
func (c *VocabularyCache) Refresh(ctx context.Context, ds Datasource) error {
	e := c.entry(ds.ID)
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	intr, err := c.factory.NewIntrospector(ctx, ds.Type, ds.ConnStr)
	if err != nil {
		return fmt.Errorf("open introspector: %w", err)
	}
	defer intr.Close()

	desc, err := datasource.Describe(ctx, intr)
	if err != nil {
		c.logger.Warn("schema introspection failed",
			zap.String("datasource_id", ds.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return fmt.Errorf("describe schema: %w", err)
	}

	e.resolver.Learn(desc)
	c.logger.Info("refreshed schema vocabulary",
		zap.String("datasource_id", ds.ID.String()),
		zap.Int("tables", len(desc)))
	return nil
}

// RefreshFunc adapts Refresh to the retry orchestrator's refresh hook.
func (c *VocabularyCache) RefreshFunc(ds Datasource) retry.RefreshFunc {
	return func(ctx context.Context) error {
		return c.Refresh(ctx, ds)
	}
}
