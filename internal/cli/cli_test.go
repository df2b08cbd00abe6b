package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/model"
)

const seedYAML = `lodgings:
  - id: h1
    name: Harbor Inn
    destination_id: 1
    prices:
      - {from: 2025-12-01, to: 2025-12-31, price: 100}
  - id: h2
    name: Pier House
    destination_id: 1
    prices:
      - {from: 2025-12-01, to: 2025-12-31, price: 90}
`

const request = `{"destinations":[{"destination_id":1,"nights":3}],"global_date_range":{"start":"2025-12-01","end":"2025-12-31"}}`

type fixture struct {
	dir     string
	seed    string
	request string
	config  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		seed:    filepath.Join(dir, "seed.yaml"),
		request: filepath.Join(dir, "request.json"),
		config:  filepath.Join(dir, "missing.yaml"),
	}
	require.NoError(t, os.WriteFile(f.seed, []byte(seedYAML), 0o600))
	require.NoError(t, os.WriteFile(f.request, []byte(request), 0o600))
	return f
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tripnav version")
}

func TestOptimizeFromSeed(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "", "optimize", "-c", f.config, "--seed", f.seed, "-f", f.request)
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Success)
	require.NotNil(t, res.BestItinerary)
	assert.Equal(t, model.Money(27000), res.BestItinerary.TotalCost)
	assert.Equal(t, "h2", res.BestItinerary.Destinations[0].Assignments[0].LodgingID)
	assert.NotEmpty(t, res.RequestHash)
}

func TestOptimizeFromStdinAsAnonymous(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, request, "optimize", "-c", f.config, "--seed", f.seed, "--tier", "anonymous", "--no-cache")
	require.NoError(t, err)

	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	require.NotNil(t, res.BestItinerary)
	assert.True(t, res.BestItinerary.Masked)
	assert.Empty(t, res.RequestHash)
	assert.NotNil(t, res.Access)
}

func TestOptimizeInvalidRequest(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, `{"destinations":[]}`, "optimize", "-c", f.config, "--seed", f.seed)
	require.Error(t, err)
}

func TestCompareCommand(t *testing.T) {
	f := newFixture(t)
	out, err := run(t, "", "compare", "-c", f.config, "--seed", f.seed, "-f", f.request, "--pretty")
	require.NoError(t, err)

	var res model.CompareResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Success)
	assert.Equal(t, []model.SearchType{model.SearchNormal, model.SearchRanges}, res.Analysis.SearchTypesExecuted)
}

func TestFingerprintIgnoresProcessingOptions(t *testing.T) {
	f := newFixture(t)
	a, err := run(t, request, "fingerprint", "-c", f.config)
	require.NoError(t, err)
	withOpts := strings.Replace(request, `{"destinations"`, `{"use_cache":false,"max_optimization_time_ms":500,"destinations"`, 1)
	b, err := run(t, withOpts, "fingerprint", "-c", f.config)
	require.NoError(t, err)

	assert.Len(t, strings.TrimSpace(a), 64)
	assert.Equal(t, a, b)
}

func TestImportThenOptimizeSQLite(t *testing.T) {
	f := newFixture(t)
	db := filepath.Join(f.dir, "catalog.db")

	out, err := run(t, "", "migrate", "-c", f.config, "--catalog", "sqlite", "--dsn", db)
	require.NoError(t, err)
	assert.Contains(t, out, "applied 1 migration(s) to sqlite catalog")

	out, err = run(t, "", "import", f.seed, "-c", f.config, "--catalog", "sqlite", "--dsn", db)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 62 quotes")

	out, err = run(t, "", "optimize", "-c", f.config, "--catalog", "sqlite", "--dsn", db, "-f", f.request, "--no-cache")
	require.NoError(t, err)
	var res model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	require.NotNil(t, res.BestItinerary)
	assert.Equal(t, model.Money(27000), res.BestItinerary.TotalCost)
}

func TestMigrateRejectsMemoryCatalog(t *testing.T) {
	f := newFixture(t)
	_, err := run(t, "", "migrate", "-c", f.config, "--catalog", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no schema")
}
