package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	runFile    = "testdata/run.mzXML"
	xtractFile = "testdata/xtract.xml"
	csvFile    = "testdata/precursors.csv"
)

// resetFlags restores every flag to its default between executions
func resetFlags() {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildTable(t *testing.T) {
	out, err := execute(t, "build", "--in", runFile)
	require.NoError(t, err)
	assert.Contains(t, out, "PRECURSOR M/Z")
	assert.Contains(t, out, "2,3")
	assert.Contains(t, out, "700")
}

func TestBuildExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	out, err := execute(t, "build", "--in", runFile, "--out", dbPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Written: 4 scans")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM ScanTable`).Scan(&count))
	assert.Equal(t, 4, count)

	var topology string
	require.NoError(t, db.QueryRow(`SELECT Topology FROM HeaderTable`).Scan(&topology))
	assert.Equal(t, "direct-infusion", topology)

	var children string
	require.NoError(t, db.QueryRow(`SELECT Children FROM ScanTable WHERE ScanNumber = 1`).Scan(&children))
	assert.Equal(t, "2,3", children)
}

func TestBuildSelectorsAndFilters(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
		wantErr bool
	}{
		{
			name: "lc-msms parent",
			args: []string{"--topology", "lc-msms", "--parent", "1"},
			want: []string{"500"},
		},
		{
			name: "subtree",
			args: []string{"--topology", "lc-msms", "--parent", "1", "--subtree"},
			want: []string{"2,3"},
		},
		{
			name:    "profile",
			args:    []string{"--topology", "ms-profile", "--scan", "4"},
			want:    []string{"| 4 "},
			notWant: []string{"2,3"},
		},
		{
			name:    "precursor cutoff",
			args:    []string{"--precursor-cutoff", "25", "--precursor-cutoff-type", "absolute"},
			want:    []string{"500"},
			notWant: []string{"700", "2,3"},
		},
		{name: "lc-msms without selector", args: []string{"--topology", "lc-msms"}, wantErr: true},
		{name: "subtree without parent", args: []string{"--subtree"}, wantErr: true},
		{name: "unknown topology", args: []string{"--topology", "gc"}, wantErr: true},
		{name: "bad cutoff type", args: []string{"--cutoff-type", "relative"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"build", "--in", runFile}, tt.args...)...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestBuildMissingInput(t *testing.T) {
	_, err := execute(t, "build", "--in", filepath.Join(t.TempDir(), "absent.mzXML"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestView(t *testing.T) {
	out, err := execute(t, "view", "--in", runFile)
	require.NoError(t, err)
	assert.Contains(t, out, "scan 1 MS1 RT 1.50")
	assert.Contains(t, out, "scan 2 MS2 RT 2.00 precursor 500.0000")
	assert.Contains(t, out, "scan 4 MS1")

	out, err = execute(t, "view", "--in", runFile, "--list")
	require.NoError(t, err)
	assert.Equal(t, "1\n4\n", out)

	out, err = execute(t, "view", "--in", runFile, "--list", "--parent", "1")
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n", out)
}

func TestSummarize(t *testing.T) {
	out, err := execute(t, "summarize", runFile)
	require.NoError(t, err)
	assert.Contains(t, out, "MS1 scans")
	assert.Contains(t, out, "MS2 scans")
	assert.Contains(t, out, "Top-level scans")
}

func TestQuant(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "csv reference",
			args: []string{"--in", runFile, "--reference-csv", csvFile, "--scan", "4"},
			want: []string{"Scan: 4", "500.0000"},
		},
		{
			name: "mzxml reference",
			args: []string{"--in", runFile, "--reference", runFile, "--reference-scan", "1", "--scan", "4"},
			want: []string{"Scan: 4", "500.0000"},
		},
		{
			name: "xtract",
			args: []string{"--in", xtractFile, "--tolerance", "0.5", "--ppm=false"},
			want: []string{"Scan: 4", "499.5000", "998.0000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"quant"}, tt.args...)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	t.Run("full-ms needs a reference", func(t *testing.T) {
		_, err := execute(t, "quant", "--in", runFile)
		assert.Error(t, err)
	})
}

func TestQuantExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "quant.db")
	_, err := execute(t, "quant", "--in", xtractFile, "--out", dbPath)
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM QuantTable`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestLoadReferenceCSV(t *testing.T) {
	peaks, err := loadReferenceCSV(csvFile)
	require.NoError(t, err)
	require.Len(t, peaks, 2)
	assert.Equal(t, 500.001, peaks[0].MZ)
	assert.Equal(t, 2, peaks[0].PrecursorCharge)
	assert.True(t, peaks[1].IsPrecursor)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", runFile)
	require.NoError(t, err)
	assert.Contains(t, out, "valid mzXML file, 4 scans")

	out, err = execute(t, "validate", xtractFile)
	require.NoError(t, err)
	assert.Contains(t, out, "valid Xtract file")

	_, err = execute(t, "validate", csvFile)
	assert.Error(t, err)
}

func TestConfigErrors(t *testing.T) {
	_, err := execute(t, "build", "--in", runFile, "--log-format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "build", "--in", runFile, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
