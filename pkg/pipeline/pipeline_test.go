package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/beaconforge/pkg/aggregate"
	"github.com/dd0wney/beaconforge/pkg/config"
	"github.com/dd0wney/beaconforge/pkg/graph"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Day = "2026-08-26"
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.Inputs.Traffic = writeInput(t, dir, "traffic.csv",
		"host,server_ip,port,client_ip\n"+
			"a.example.com,1.1.1.1,443,10.0.0.5\n"+
			"b.evil.com,1.1.1.1,443,10.0.0.6\n")
	cfg.Inputs.MaliciousHistory = writeInput(t, dir, "malicious.csv",
		"b.evil.com,5\n")
	cfg.Inputs.Popularity = writeInput(t, dir, "popularity.csv",
		"a.example.com,0.9\n")
	cfg.Inputs.Lexical = writeInput(t, dir, "lexical.csv",
		"host,entropy\na.example.com,3.2\n")
	return cfg
}

func readCSVFile(t *testing.T, path string) (header []string, rows map[string][]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	rows = make(map[string][]string)
	for _, record := range records[1:] {
		rows[record[0]] = record
	}
	return records[0], rows
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not found in %v", name, header)
	return -1
}

// TestRun_EndToEnd exercises the shared-infrastructure scenario:
// a.example.com and b.evil.com co-hosted on 1.1.1.1, with b.evil.com
// in the malicious history at engagement 5.
func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)

	p := New(cfg, nil, nil)
	require.NoError(t, p.Run())

	// Domain scores: evil.com is fully malicious.
	header, rows := readCSVFile(t, filepath.Join(cfg.OutDir, "domain_scores_2026-08-26.csv"))
	evil, ok := rows["evil.com"]
	require.True(t, ok, "evil.com missing from domain export")
	assert.Equal(t, "1", evil[column(t, header, "cntMalFQDNs")])
	assert.Equal(t, "1", evil[column(t, header, "malFQDN_ratio")])

	// IP scores: 1.1.1.1 hosts the malicious domain.
	header, rows = readCSVFile(t, filepath.Join(cfg.OutDir, "ip_scores_2026-08-26.csv"))
	shared, ok := rows["1.1.1.1"]
	require.True(t, ok, "1.1.1.1 missing from IP export")
	assert.Equal(t, "2", shared[column(t, header, "ipDom")])
	assert.Equal(t, "1", shared[column(t, header, "ipMalDom")])

	// Distances: b.evil.com at 0, a.example.com at 1 via the shared IP.
	header, rows = readCSVFile(t, filepath.Join(cfg.OutDir, "distance_scores_2026-08-26.csv"))
	assert.Equal(t, "0", rows["b.evil.com"][column(t, header, "minMalDist")])
	assert.Equal(t, "1", rows["a.example.com"][column(t, header, "minMalDist")])

	// Wide table: both hosts present, keyed (host, day), lexical group
	// joined for a.example.com and zero-filled for b.evil.com.
	header, rows = readCSVFile(t, filepath.Join(cfg.OutDir, "features_2026-08-26.csv"))
	require.Len(t, rows, 2)
	a := rows["a.example.com"]
	assert.Equal(t, "2026-08-26", a[column(t, header, "day")])
	assert.Equal(t, "3.2", a[column(t, header, "entropy")])
	assert.Equal(t, "0", rows["b.evil.com"][column(t, header, "entropy")])
	for host, row := range rows {
		assert.Len(t, row, len(header), "ragged row for %s", host)
	}

	// The snapshot is published only after success; reopening yields
	// the cumulative graph.
	store, err := graph.Open(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), store.Statistics().NodeCount) // 2 FQDN + 2 Domain + 1 IP
}

// TestRun_Rerun verifies wholesale re-running a day is safe: upsert
// idempotency keeps the graph and outputs stable.
func TestRun_Rerun(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, nil)

	require.NoError(t, p.Run())
	store, err := graph.Open(cfg.DataDir)
	require.NoError(t, err)
	statsOnce := store.Statistics()

	require.NoError(t, p.Run())
	store, err = graph.Open(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, statsOnce, store.Statistics())
}

// TestRun_MissingOptionalInputs: no malicious history and no external
// feature tables is a degraded run, not a failure.
func TestRun_MissingOptionalInputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inputs.MaliciousHistory = filepath.Join(t.TempDir(), "absent.csv")
	cfg.Inputs.Lexical = filepath.Join(t.TempDir(), "absent.csv")
	cfg.Inputs.Popularity = ""

	p := New(cfg, nil, nil)
	require.NoError(t, p.Run())

	// With no labels anywhere, every host gets the sentinel distance.
	header, rows := readCSVFile(t, filepath.Join(cfg.OutDir, "distance_scores_2026-08-26.csv"))
	idx := column(t, header, "minMalDist")
	assert.Equal(t, "100", rows["a.example.com"][idx])
	assert.Equal(t, "100", rows["b.evil.com"][idx])
}

// TestRun_MissingTraffic: the daily batch is the one required input.
func TestRun_MissingTraffic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Inputs.Traffic = filepath.Join(t.TempDir(), "absent.csv")

	p := New(cfg, nil, nil)
	require.Error(t, p.Run())

	// Fatal errors leave no partially written feature table.
	_, err := os.Stat(filepath.Join(cfg.OutDir, "features_2026-08-26.csv"))
	assert.True(t, os.IsNotExist(err))
}

// TestRun_LabelsPersistAcrossDays: labels applied on day one still
// drive distance scoring on day two even if the history file vanishes.
func TestRun_LabelsPersistAcrossDays(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil, nil)
	require.NoError(t, p.Run())

	day2 := cfg
	day2.Day = "2026-08-27"
	day2.Inputs.MaliciousHistory = filepath.Join(t.TempDir(), "absent.csv")
	require.NoError(t, New(day2, nil, nil).Run())

	header, rows := readCSVFile(t, filepath.Join(cfg.OutDir, "distance_scores_2026-08-27.csv"))
	assert.Equal(t, "1", rows["a.example.com"][column(t, header, "minMalDist")])
}

func TestHostTables(t *testing.T) {
	ms := graph.NewMemoryStore()
	_, err := ms.UpsertBatch([]graph.BatchRow{
		{Host: "a.example.com", ServerIP: "1.1.1.1", RegisteredDomain: "example.com", LogDay: "2026-08-26", Popularity: -1},
		{Host: "a.example.com", ServerIP: "2.2.2.2", RegisteredDomain: "example.com", LogDay: "2026-08-26", Popularity: -1},
	})
	require.NoError(t, err)

	domainScores := map[string]aggregate.DomainScore{
		"example.com": {Domain: "example.com", CntFQDN: 1},
	}
	dt := hostDomainTable(ms, []string{"a.example.com"}, domainScores)
	require.Contains(t, dt.Rows, "a.example.com")
	assert.Equal(t, float64(1), dt.Rows["a.example.com"][0]) // cntFQDN

	// Element-wise max across the host's IPs.
	ipScores := map[string]aggregate.IPScore{
		"1.1.1.1": {IP: "1.1.1.1", CntDom: 3, SumDomMalEng: 1},
		"2.2.2.2": {IP: "2.2.2.2", CntDom: 2, SumDomMalEng: 9},
	}
	it := hostIPTable(ms, []string{"a.example.com"}, ipScores)
	require.Contains(t, it.Rows, "a.example.com")
	row := it.Rows["a.example.com"]
	assert.Equal(t, float64(3), row[0]) // ipDom max
	assert.Equal(t, float64(9), row[3]) // sumIpDomMalEng max
}
