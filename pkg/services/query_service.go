package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/queryscope/queryscope-engine/pkg/adapters/datasource"
	"github.com/queryscope/queryscope-engine/pkg/apperrors"
	"github.com/queryscope/queryscope-engine/pkg/logging"
	"github.com/queryscope/queryscope-engine/pkg/resolver"
	"github.com/queryscope/queryscope-engine/pkg/retry"
	enginesql "github.com/queryscope/queryscope-engine/pkg/sql"
)

// QueryOutcome is the result of a resilient query execution: the rows plus
// the attempt log describing every retry, refresh and delay along the way.
type QueryOutcome struct {
	Result   *datasource.QueryResult `json:"result"`
	Attempts []retry.Attempt         `json:"attempts,omitempty"`
}

// QueryService executes SQL against datasources with injection screening,
// classification-aware retries, vocabulary refresh on schema errors and
// suggestion-enriched failures.
type QueryService interface {
	// Execute runs a SELECT with bounded results. params are positional
	// placeholder values ($1.../@p1...) and are screened for injection
	// payloads before anything touches the database.
	Execute(ctx context.Context, ds Datasource, sqlText string, params []any, limit int) (*QueryOutcome, error)

	// ResolveTable maps a free-text token to the datasource's best-matching
	// table.
	ResolveTable(ds Datasource, token string) *resolver.Match

	// ResolveColumn maps a token to a column, optionally scoped to a table.
	ResolveColumn(ds Datasource, token, table string) *resolver.ColumnMatch

	// ResolveRelationship finds the junction table linking two entities.
	ResolveRelationship(ds Datasource, entityA, entityB string) *resolver.RelationshipMatch
}

type queryService struct {
	manager *datasource.Manager
	vocab   *VocabularyCache
	orch    *retry.Orchestrator
	logger  *zap.Logger
}

// NewQueryService creates a query service. A nil logger is a no-op.
func NewQueryService(manager *datasource.Manager, vocab *VocabularyCache, orch *retry.Orchestrator, logger *zap.Logger) QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &queryService{
		manager: manager,
		vocab:   vocab,
		orch:    orch,
		logger:  logger,
	}
}

// Execute screens the parameters, then runs the query under the retry
// orchestrator. Schema errors trigger a vocabulary refresh before the first
// retry; terminal connection failures invalidate the cached connection so
// the next call redials.
func (s *queryService) Execute(ctx context.Context, ds Datasource, sqlText string, params []any, limit int) (*QueryOutcome, error) {
	for i, value := range params {
		if finding := enginesql.CheckParameter(fmt.Sprintf("p%d", i+1), value); finding != nil {
			s.logger.Warn("rejected query parameter",
				zap.String("datasource_id", ds.ID.String()),
				zap.String("param", finding.ParamName),
				zap.String("fingerprint", finding.Fingerprint))
			return nil, fmt.Errorf("parameter %s failed injection screening (fingerprint %s)",
				finding.ParamName, finding.Fingerprint)
		}
	}

	exec, err := s.manager.Executor(ctx, ds.ID, ds.Type, ds.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("open datasource connection: %w", err)
	}

	s.logger.Debug("executing query",
		zap.String("datasource_id", ds.ID.String()),
		zap.String("sql", logging.SanitizeQuery(sqlText)))

	operation := func(ctx context.Context) (*datasource.QueryResult, error) {
		return exec.QueryWithParams(ctx, sqlText, params, limit)
	}

	result, attempts, err := retry.Run(ctx, s.orch, operation, s.vocab.RefreshFunc(ds), retry.RunContext{
		SQL:    sqlText,
		Tables: s.vocab.TableNames(ds.ID),
	})
	if err != nil {
		if qe, ok := apperrors.AsQueryError(err); ok && qe.Classification == apperrors.ConnectionError {
			s.manager.Invalidate(ds.ID)
		}
		return &QueryOutcome{Attempts: attempts}, err
	}

	return &QueryOutcome{Result: result, Attempts: attempts}, nil
}

func (s *queryService) ResolveTable(ds Datasource, token string) *resolver.Match {
	return s.vocab.Resolver(ds.ID).Resolve(token)
}

func (s *queryService) ResolveColumn(ds Datasource, token, table string) *resolver.ColumnMatch {
	return s.vocab.Resolver(ds.ID).ResolveColumn(token, table)
}

func (s *queryService) ResolveRelationship(ds Datasource, entityA, entityB string) *resolver.RelationshipMatch {
	return s.vocab.Resolver(ds.ID).ResolveRelationship(entityA, entityB)
}
