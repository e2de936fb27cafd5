package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parquetflow/pkg/config"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/format"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
	"github.com/ajitpratap0/parquetflow/pkg/testutil"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd(viper.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "pqflow v"+version)
}

func TestLoadGenerateConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sink.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output_path: /nowhere/x.pqf\ncompression: gzip\n"), 0o600))

	t.Setenv("PQFLOW_BATCH_SIZE", "123")
	v := viper.New()
	root := newRootCmd(v)
	cmd, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--output-dir", dir, "--compression", "snappy"}))

	cfg, err := loadGenerateConfig(v)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.OutputDir)
	assert.Empty(t, cfg.OutputPath)
	assert.Equal(t, "snappy", cfg.Compression)
	assert.Equal(t, 123, cfg.BatchSize)
	assert.Equal(t, tickColumns, cfg.Columns)
}

func TestRunGenerateAndInspect(t *testing.T) {
	cfg := config.NewSinkConfig("cli-test")
	cfg.OutputDir = t.TempDir()
	cfg.RingBufferSize = 1024
	cfg.BatchSize = 300
	cfg.MaxRowsPerFile = 1000
	cfg.Columns = tickColumns
	require.NoError(t, cfg.Validate())

	report, err := runGenerate(context.Background(), cfg, generateOptions{Rows: 2500, Block: true, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), report.Produced)
	assert.Equal(t, int64(2500), report.EntriesWritten)
	assert.Equal(t, int64(3), report.FilesWritten)
	assert.Zero(t, report.Dropped)
	assert.Zero(t, report.Malformed)

	var out bytes.Buffer
	report.print(&out)
	assert.Contains(t, out.String(), "files written:   3")
	assert.Contains(t, out.String(), "rss:")
	if runtime.GOOS == "linux" {
		assert.NotZero(t, report.Resources.MemoryRSS)
		assert.Positive(t, report.Resources.ThreadCount)
	}

	view, err := inspectFile(filepath.Join(cfg.OutputDir, "part-00002.pqf"), true, true)
	require.NoError(t, err)
	assert.Equal(t, int64(500), view.NumRows)
	assert.True(t, view.Verified)
	assert.Equal(t, "zstd", view.Codec)
	require.Len(t, view.Columns, len(tickColumns))
	assert.Equal(t, "FIXED_BYTE_ARRAY", view.Columns[4].Type)
	assert.Len(t, view.RowGroups, 2)
}

func TestRunGenerateReleasesShipWorkersOnError(t *testing.T) {
	cfg := config.NewSinkConfig("cli-fail")
	cfg.OutputDir = filepath.Join(t.TempDir(), "missing", "deeper")
	cfg.Columns = tickColumns
	cfg.Shipper.Workers = 8
	require.NoError(t, cfg.Validate())

	before := runtime.NumGoroutine()
	_, err := runGenerate(context.Background(), cfg, generateOptions{Rows: 10, Seed: 1})
	require.Error(t, err)
	assert.Equal(t, flowerrors.CodeIO, flowerrors.CodeOf(err))

	testutil.AssertEventually(t, func() bool { return runtime.NumGoroutine() <= before },
		2*time.Second, "ship queue workers still running")
}

func TestResourceMonitorSample(t *testing.T) {
	rm := newResourceMonitor()
	usage := rm.sample()
	assert.Positive(t, usage.GoroutineCount)
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)
	if runtime.GOOS == "linux" {
		assert.NotZero(t, usage.MemoryRSS)
		assert.NotZero(t, usage.MemoryVMS)
		assert.Positive(t, usage.OpenFDs)
	}
}

func TestGeneratorMatchesSchema(t *testing.T) {
	cfg := config.NewSinkConfig("g")
	cfg.Columns = append(append([]config.ColumnConfig(nil), tickColumns...),
		config.ColumnConfig{Name: "flag", Type: "BOOL"},
		config.ColumnConfig{Name: "nanos", Type: "I96"},
		config.ColumnConfig{Name: "f", Type: "F32", Nullable: true})
	s, err := cfg.Schema()
	require.NoError(t, err)

	g := newGenerator(s, 1)
	for i := int64(0); i < 200; i++ {
		rec, err := g.next(i)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rec), s.MinRecordSize())
	}
	assert.Equal(t, schema.Boolean, s.Column(6).PhysicalType)
}

func TestInspectRejectsGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.pqf")
	require.NoError(t, os.WriteFile(p, []byte("not a columnar file at all"), 0o600))
	_, err := inspectFile(p, false, false)
	require.Error(t, err)

	_, err = format.ReadFileMetadata(p)
	require.Error(t, err)
}
