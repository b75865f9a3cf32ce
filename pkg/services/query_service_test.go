package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryscope/queryscope-engine/pkg/adapters/datasource"
	"github.com/queryscope/queryscope-engine/pkg/apperrors"
	"github.com/queryscope/queryscope-engine/pkg/retry"
	"github.com/queryscope/queryscope-engine/pkg/suggest"
)

// scriptedIntrospector serves a fixed catalog.
type scriptedIntrospector struct {
	tables []datasource.TableMetadata
	cols   map[string][]datasource.ColumnMetadata
	err    error
	closed bool
}

func (f *scriptedIntrospector) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return f.tables, f.err
}

func (f *scriptedIntrospector) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	return f.cols[tableName], nil
}

func (f *scriptedIntrospector) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}

func (f *scriptedIntrospector) Close() error {
	f.closed = true
	return nil
}

// scriptedExecutor fails with errs in order, then succeeds.
type scriptedExecutor struct {
	errs   []error
	calls  int
	result *datasource.QueryResult
	closed int
}

func (f *scriptedExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	return f.QueryWithParams(ctx, sqlQuery, nil, limit)
}

func (f *scriptedExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.result, nil
}

func (f *scriptedExecutor) QuoteIdentifier(name string) string { return name }
func (f *scriptedExecutor) Ping(ctx context.Context) error     { return nil }
func (f *scriptedExecutor) Close() error {
	f.closed++
	return nil
}

type scriptedFactory struct {
	introspector  func() datasource.Introspector
	executor      *scriptedExecutor
	execOpens     int
	introspectErr error
}

func (f *scriptedFactory) NewIntrospector(ctx context.Context, dsType, connStr string) (datasource.Introspector, error) {
	if f.introspectErr != nil {
		return nil, f.introspectErr
	}
	return f.introspector(), nil
}

func (f *scriptedFactory) NewQueryExecutor(ctx context.Context, dsType, connStr string) (datasource.QueryExecutor, error) {
	f.execOpens++
	return f.executor, nil
}

func (f *scriptedFactory) ListTypes() []string { return []string{"postgres"} }

func studentCatalog() func() datasource.Introspector {
	return func() datasource.Introspector {
		return &scriptedIntrospector{
			tables: []datasource.TableMetadata{
				{SchemaName: "public", TableName: "Students", RowCount: 500},
				{SchemaName: "public", TableName: "Courses", RowCount: 40},
			},
			cols: map[string][]datasource.ColumnMetadata{
				"Students": {{ColumnName: "id", DataType: "integer"}, {ColumnName: "first_name", DataType: "text"}},
				"Courses":  {{ColumnName: "id", DataType: "integer"}, {ColumnName: "title", DataType: "text"}},
			},
		}
	}
}

func fastRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:            2,
		BaseDelay:             time.Millisecond,
		MaxDelay:              5 * time.Millisecond,
		BackoffFactor:         2.0,
		RefreshOnSchemaError:  true,
		RefreshOnUnknownError: true,
	}
}

func newService(factory *scriptedFactory, suggester retry.Suggester) (QueryService, *VocabularyCache) {
	vocab := NewVocabularyCache(factory, 0, nil)
	manager := datasource.NewManager(factory, nil)
	orch := retry.New(fastRetryConfig(), suggester, nil)
	return NewQueryService(manager, vocab, orch, nil), vocab
}

func TestVocabularyCache_Refresh(t *testing.T) {
	factory := &scriptedFactory{introspector: studentCatalog()}
	vocab := NewVocabularyCache(factory, 0, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres", ConnStr: "host=localhost"}

	// Empty until the first refresh.
	assert.Nil(t, vocab.Resolver(ds.ID).Resolve("students"))

	require.NoError(t, vocab.Refresh(context.Background(), ds))

	m := vocab.Resolver(ds.ID).Resolve("studnets")
	require.NotNil(t, m)
	assert.Equal(t, "Students", m.Name)
	assert.ElementsMatch(t, []string{"Students", "Courses"}, vocab.TableNames(ds.ID))
}

func TestVocabularyCache_RefreshErrors(t *testing.T) {
	factory := &scriptedFactory{introspectErr: errors.New("connection refused")}
	vocab := NewVocabularyCache(factory, 0, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres"}

	assert.Error(t, vocab.Refresh(context.Background(), ds))

	factory.introspectErr = nil
	factory.introspector = func() datasource.Introspector {
		return &scriptedIntrospector{err: errors.New("permission denied")}
	}
	assert.Error(t, vocab.Refresh(context.Background(), ds))
}

func TestExecute_SchemaErrorRefreshesAndRecovers(t *testing.T) {
	exec := &scriptedExecutor{
		errs:   []error{errors.New(`relation "studnets" does not exist`)},
		result: &datasource.QueryResult{RowCount: 2},
	}
	factory := &scriptedFactory{introspector: studentCatalog(), executor: exec}
	svc, vocab := newService(factory, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres", ConnStr: "host=localhost"}

	out, err := svc.Execute(context.Background(), ds, "SELECT * FROM studnets", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result.RowCount)
	assert.Equal(t, 2, exec.calls)

	require.Len(t, out.Attempts, 2)
	assert.True(t, out.Attempts[0].MetadataRefreshed)
	assert.Equal(t, apperrors.SchemaError, out.Attempts[0].Classification)

	// The refresh populated the vocabulary as a side effect.
	assert.NotEmpty(t, vocab.TableNames(ds.ID))
}

func TestExecute_InjectionScreening(t *testing.T) {
	exec := &scriptedExecutor{result: &datasource.QueryResult{}}
	factory := &scriptedFactory{introspector: studentCatalog(), executor: exec}
	svc, _ := newService(factory, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres"}

	_, err := svc.Execute(context.Background(), ds,
		"SELECT * FROM Students WHERE first_name = $1",
		[]any{"' OR '1'='1"}, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "injection")
	assert.Equal(t, 0, exec.calls, "screened queries must never reach the database")

	// Clean parameters pass through.
	_, err = svc.Execute(context.Background(), ds,
		"SELECT * FROM Students WHERE first_name = $1",
		[]any{"Ada", 42, true}, 10)
	require.NoError(t, err)
}

func TestExecute_TerminalSchemaErrorCarriesSuggestions(t *testing.T) {
	schemaErr := errors.New(`relation "studnets" does not exist`)
	exec := &scriptedExecutor{errs: []error{schemaErr, schemaErr, schemaErr}}
	factory := &scriptedFactory{introspector: studentCatalog(), executor: exec}

	engine := suggest.NewEngine(suggest.DefaultThreshold, suggest.DefaultMaxPerName, nil)
	svc, vocab := newService(factory, engine)
	ds := Datasource{ID: uuid.New(), Type: "postgres", ConnStr: "host=localhost"}

	// Seed the vocabulary so suggestions have tables to rank.
	require.NoError(t, vocab.Refresh(context.Background(), ds))

	out, err := svc.Execute(context.Background(), ds, "SELECT * FROM studnets", nil, 10)
	require.Error(t, err)

	qe, ok := apperrors.AsQueryError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.SchemaError, qe.Classification)
	require.NotNil(t, qe.Suggestions)
	require.Contains(t, qe.Suggestions.Suggestions, "studnets")
	assert.Equal(t, "Students", qe.Suggestions.Suggestions["studnets"][0].TableName)

	last := out.Attempts[len(out.Attempts)-1]
	assert.NotNil(t, last.Suggestions)
}

func TestExecute_ConnectionErrorInvalidatesConnection(t *testing.T) {
	connErr := errors.New("connection refused")
	exec := &scriptedExecutor{errs: []error{connErr, connErr, connErr}, result: &datasource.QueryResult{}}
	factory := &scriptedFactory{introspector: studentCatalog(), executor: exec}
	svc, _ := newService(factory, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres", ConnStr: "host=localhost"}

	_, err := svc.Execute(context.Background(), ds, "SELECT 1", nil, 10)
	require.Error(t, err)
	assert.Equal(t, 1, exec.closed, "terminal connection failure must drop the cached connection")

	// Next execution redials.
	_, err = svc.Execute(context.Background(), ds, "SELECT 1", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.execOpens)
}

func TestResolvePassthroughs(t *testing.T) {
	factory := &scriptedFactory{introspector: studentCatalog(), executor: &scriptedExecutor{}}
	svc, vocab := newService(factory, nil)
	ds := Datasource{ID: uuid.New(), Type: "postgres"}
	require.NoError(t, vocab.Refresh(context.Background(), ds))

	m := svc.ResolveTable(ds, "student")
	require.NotNil(t, m)
	assert.Equal(t, "Students", m.Name)

	cm := svc.ResolveColumn(ds, "firstname", "Students")
	require.NotNil(t, cm)
	assert.Equal(t, "first_name", cm.Column)

	assert.Nil(t, svc.ResolveRelationship(ds, "invoice", "warehouse"))
}
