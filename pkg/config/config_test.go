package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigAndChdir writes yamlContent as config.yaml in a temp directory
// and changes into it so Load() finds the file.
func writeConfigAndChdir(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

func clearEngineEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENVIRONMENT",
		"RETRY_MAX_RETRIES", "RETRY_BASE_DELAY", "RETRY_MAX_DELAY", "RETRY_BACKOFF_FACTOR",
		"RETRY_REFRESH_ON_SCHEMA_ERROR", "RETRY_REFRESH_ON_UNKNOWN_ERROR",
		"RESOLVER_FUZZY_THRESHOLD",
		"SUGGEST_SIMILARITY_THRESHOLD", "SUGGEST_MAX_PER_NAME",
		"DATASOURCE_TYPE", "DATASOURCE_HOST", "DATASOURCE_PORT",
		"DATASOURCE_POOL_MAX_CONNS", "DATASOURCE_POOL_MIN_CONNS",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	writeConfigAndChdir(t, `
env: "test"
`)
	clearEngineEnv(t)

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected Retry.MaxRetries=3 (default), got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("expected Retry.BaseDelay=1s (default), got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.MaxDelay != 30*time.Second {
		t.Errorf("expected Retry.MaxDelay=30s (default), got %v", cfg.Retry.MaxDelay)
	}
	if cfg.Retry.BackoffFactor != 2.0 {
		t.Errorf("expected Retry.BackoffFactor=2.0 (default), got %g", cfg.Retry.BackoffFactor)
	}
	if !cfg.Retry.RefreshOnSchemaError || !cfg.Retry.RefreshOnUnknownError {
		t.Error("expected metadata refresh enabled by default")
	}
	if cfg.Resolver.FuzzyThreshold != 60 {
		t.Errorf("expected Resolver.FuzzyThreshold=60 (default), got %d", cfg.Resolver.FuzzyThreshold)
	}
	if cfg.Suggest.SimilarityThreshold != 0.6 {
		t.Errorf("expected Suggest.SimilarityThreshold=0.6 (default), got %g", cfg.Suggest.SimilarityThreshold)
	}
	if cfg.Suggest.MaxPerName != 3 {
		t.Errorf("expected Suggest.MaxPerName=3 (default), got %d", cfg.Suggest.MaxPerName)
	}
	if cfg.Datasource.Type != "postgres" {
		t.Errorf("expected Datasource.Type=postgres (default), got %s", cfg.Datasource.Type)
	}
	if cfg.Datasource.PoolMaxConns != 10 {
		t.Errorf("expected Datasource.PoolMaxConns=10 (default), got %d", cfg.Datasource.PoolMaxConns)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	writeConfigAndChdir(t, `
env: "test"
retry:
  max_retries: 5
  base_delay: 2s
resolver:
  fuzzy_threshold: 70
datasource:
  host: "db.example.com"
  port: 5432
`)
	clearEngineEnv(t)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RETRY_MAX_RETRIES", "7")
	t.Setenv("RESOLVER_FUZZY_THRESHOLD", "80")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("expected Retry.MaxRetries=7 (from env), got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Resolver.FuzzyThreshold != 80 {
		t.Errorf("expected Resolver.FuzzyThreshold=80 (from env), got %d", cfg.Resolver.FuzzyThreshold)
	}

	// Verify YAML values survive where env is silent (proves YAML was read).
	if cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("expected Retry.BaseDelay=2s (from yaml), got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Datasource.Host != "db.example.com" {
		t.Errorf("expected Datasource.Host=db.example.com (from yaml), got %s", cfg.Datasource.Host)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	_, err = Load("test-version")
	if err == nil {
		t.Error("expected error when config.yaml is missing")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "negative max retries",
			yaml: `
retry:
  max_retries: -1
`,
			wantErr: "max_retries",
		},
		{
			name: "max delay below base delay",
			yaml: `
retry:
  base_delay: 10s
  max_delay: 1s
`,
			wantErr: "max_delay",
		},
		{
			name: "backoff factor below one",
			yaml: `
retry:
  backoff_factor: 0.5
`,
			wantErr: "backoff_factor",
		},
		{
			name: "fuzzy threshold out of range",
			yaml: `
resolver:
  fuzzy_threshold: 150
`,
			wantErr: "fuzzy_threshold",
		},
		{
			name: "similarity threshold out of range",
			yaml: `
suggest:
  similarity_threshold: 1.5
`,
			wantErr: "similarity_threshold",
		},
		{
			name: "unsupported datasource type",
			yaml: `
datasource:
  type: "oracle"
`,
			wantErr: "datasource.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfigAndChdir(t, tt.yaml)
			clearEngineEnv(t)

			_, err := Load("test-version")
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestConnectionString_Postgres(t *testing.T) {
	c := &DatasourceConfig{
		Type: "postgres", Host: "localhost", Port: 5432,
		User: "scope", Password: "secret", Database: "studentdb", SSLMode: "disable",
	}

	got := c.ConnectionString()
	want := "host=localhost port=5432 user=scope password=secret dbname=studentdb sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestConnectionString_MSSQL(t *testing.T) {
	c := &DatasourceConfig{
		Type: "mssql", Host: "localhost", Port: 1433,
		User: "sa", Password: "secret", Database: "studentdb",
	}

	got := c.ConnectionString()
	want := "server=localhost;port=1433;user id=sa;password=secret;database=studentdb"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
