package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/config"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/logger"
	"github.com/ajitpratap0/parquetflow/pkg/observability"
	"github.com/ajitpratap0/parquetflow/pkg/schema"
	"github.com/ajitpratap0/parquetflow/pkg/shipper"
	"github.com/ajitpratap0/parquetflow/pkg/sink"
)

// tickColumns is the schema used when the config declares no columns.
var tickColumns = []config.ColumnConfig{
	{Name: "ts", Type: "I64"},
	{Name: "symbol", Type: "BYTE_ARRAY"},
	{Name: "px", Type: "F64", Nullable: true},
	{Name: "qty", Type: "I32"},
	{Name: "venue", Type: "FIXED_BYTE_ARRAY", TypeLength: 4},
	{Name: "conditions", Type: "BYTE_ARRAY", Repetition: "REPEATED"},
}

var (
	symbols    = []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOG", "META", "TSLA"}
	venues     = []string{"XNAS", "XNYS", "ARCX", "BATS"}
	conditions = []string{"@", "F", "T", "I", "W"}
)

// generateReport is printed when a run finishes.
type generateReport struct {
	Produced       int64
	Dropped        int64
	Malformed      int64
	EntriesWritten int64
	FilesWritten   int64
	Shipped        int64
	ShipFailed     int64
	Elapsed        time.Duration
	Resources      resourceUsage
}

func (r generateReport) print(w io.Writer) {
	rate := float64(r.EntriesWritten) / r.Elapsed.Seconds()
	fmt.Fprintf(w, "produced:        %d\n", r.Produced)
	fmt.Fprintf(w, "entries written: %d\n", r.EntriesWritten)
	fmt.Fprintf(w, "files written:   %d\n", r.FilesWritten)
	fmt.Fprintf(w, "dropped (full):  %d\n", r.Dropped)
	fmt.Fprintf(w, "malformed:       %d\n", r.Malformed)
	if r.Shipped > 0 || r.ShipFailed > 0 {
		fmt.Fprintf(w, "shipped:         %d (%d failed)\n", r.Shipped, r.ShipFailed)
	}
	fmt.Fprintf(w, "elapsed:         %s (%.0f rows/s)\n", r.Elapsed.Round(time.Millisecond), rate)
	fmt.Fprintf(w, "cpu:             %.1f%%\n", r.Resources.CPUPercent)
	fmt.Fprintf(w, "rss:             %.1f MiB\n", float64(r.Resources.MemoryRSS)/(1<<20))
	fmt.Fprintf(w, "threads/fds:     %d/%d\n", r.Resources.ThreadCount, r.Resources.OpenFDs)
}

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Stream synthetic market data ticks through a sink",
		Long: `Generate synthetic rows for the configured schema (a trade tick schema if the
config declares no columns) and log them through a streaming sink.

Example:
  pqflow generate --config sink.yaml --rows 5000000 --block`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadGenerateConfig(v)
			if err != nil {
				return err
			}

			stopProfiles, err := startProfiles(v.GetString("cpuprofile"), v.GetString("memprofile"))
			if err != nil {
				return err
			}
			defer stopProfiles()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			report, err := runGenerate(ctx, cfg, generateOptions{
				Rows:        v.GetInt64("rows"),
				Block:       v.GetBool("block"),
				Seed:        v.GetInt64("seed"),
				MetricsAddr: v.GetString("metrics-addr"),
			})
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "Path to sink YAML configuration")
	f.String("output-dir", "", "Override output_dir from the config")
	f.String("compression", "", "Override the compression codec")
	f.Int("batch-size", 0, "Override batch_size")
	f.Int64("max-rows-per-file", 0, "Override max_rows_per_file")
	f.Int64("rows", 1000000, "Number of rows to produce")
	f.Bool("block", false, "Retry when the ring is full instead of dropping")
	f.Int64("seed", 1, "Random seed for the generated values")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.String("cpuprofile", "", "Write a CPU profile to this file")
	f.String("memprofile", "", "Write a heap profile to this file on exit")
	_ = v.BindPFlags(f)
	return cmd
}

// loadGenerateConfig reads the optional config file, applies flag and
// environment overrides and validates the result.
func loadGenerateConfig(v *viper.Viper) (*config.SinkConfig, error) {
	cfg := config.NewSinkConfig("generate")
	if path := v.GetString("config"); path != "" {
		if err := config.Load(path, cfg); err != nil {
			return nil, err
		}
	}

	if dir := v.GetString("output-dir"); dir != "" {
		cfg.OutputDir, cfg.OutputPath = dir, ""
	}
	if c := v.GetString("compression"); c != "" {
		cfg.Compression = c
	}
	if n := v.GetInt("batch-size"); n > 0 {
		cfg.BatchSize = n
	}
	if n := v.GetInt64("max-rows-per-file"); n > 0 {
		cfg.MaxRowsPerFile = n
	}
	if len(cfg.Columns) == 0 {
		cfg.Columns = tickColumns
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type generateOptions struct {
	Rows        int64
	Block       bool
	Seed        int64
	MetricsAddr string
}

func runGenerate(ctx context.Context, cfg *config.SinkConfig, opts generateOptions) (*generateReport, error) {
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()
	ctx = logger.ContextWithSink(ctx, cfg.Name)
	log := logger.WithContext(ctx, nil).With(zap.String("component", "pqflow-generate"))

	if err := observability.InitTracing(cfg.Tracing); err != nil {
		return nil, err
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	sc, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	sinkCfg, err := cfg.SinkOptions()
	if err != nil {
		return nil, err
	}

	sh, err := shipper.FromConfig(ctx, cfg.Shipper, log)
	if err != nil {
		return nil, err
	}
	queue := shipper.NewQueue(sh, cfg.Shipper.Workers, log)
	// Close is idempotent; this covers the early returns below.
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		_ = queue.Close(closeCtx)
	}()

	snk, err := sink.New(sinkCfg, sink.WithLogger(logger.Get()), sink.WithOnFileClosed(queue.Hook))
	if err != nil {
		return nil, err
	}
	defer snk.Destroy()
	if err := snk.SetSchema(sc); err != nil {
		return nil, err
	}
	if err := snk.Start(); err != nil {
		return nil, err
	}

	log.Info("generating", zap.Int64("rows", opts.Rows), zap.Bool("block", opts.Block))
	start := time.Now()
	monitor := newResourceMonitor()
	gen := newGenerator(sc, opts.Seed)
	var produced int64

produce:
	for produced < opts.Rows {
		if produced&0x3ff == 0 && ctx.Err() != nil {
			log.Warn("interrupted", zap.Int64("produced", produced))
			break
		}
		rec, err := gen.next(produced)
		if err != nil {
			return nil, err
		}
		for {
			err := snk.Log(rec)
			if err == nil || !flowerrors.IsRecoverable(err) {
				if err != nil {
					return nil, err
				}
				break
			}
			if !opts.Block {
				break
			}
			if ctx.Err() != nil {
				break produce
			}
			runtime.Gosched()
		}
		produced++
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer stopCancel()
	if err := snk.StopContext(stopCtx); err != nil {
		return nil, err
	}
	if err := queue.Close(stopCtx); err != nil {
		log.Warn("ship queue did not drain", zap.Error(err))
	}

	return &generateReport{
		Produced:       produced,
		Dropped:        snk.Dropped(),
		Malformed:      snk.Malformed(),
		EntriesWritten: snk.EntriesWritten(),
		FilesWritten:   snk.FilesWritten(),
		Shipped:        queue.Shipped(),
		ShipFailed:     queue.Failed(),
		Elapsed:        time.Since(start),
		Resources:      monitor.sample(),
	}, nil
}

// generator fills one record per row for any schema.
type generator struct {
	schema *schema.Schema
	rb     *sink.RecordBuilder
	rng    *rand.Rand
	price  float64
}

func newGenerator(s *schema.Schema, seed int64) *generator {
	return &generator{
		schema: s,
		rb:     sink.NewRecordBuilder(s),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic data
		price:  100,
	}
}

// next returns the record for row i. The slice is reused by the following
// call, which is fine because Log copies it into the ring.
func (g *generator) next(i int64) ([]byte, error) {
	g.price += (g.rng.Float64() - 0.5) * 0.1
	g.rb.Reset()
	for _, col := range g.schema.Columns() {
		switch col.Repetition {
		case schema.Optional:
			if g.rng.Intn(20) == 0 {
				g.rb.Null()
				continue
			}
		case schema.Repeated:
			n := g.rng.Intn(3)
			g.rb.List(n)
			for k := 0; k < n; k++ {
				g.value(col, i)
			}
			continue
		}
		g.value(col, i)
	}
	return g.rb.Build()
}

func (g *generator) value(col schema.ColumnDef, i int64) {
	switch col.PhysicalType {
	case schema.Boolean:
		g.rb.Bool(g.rng.Intn(2) == 1)
	case schema.Int32:
		g.rb.Int32(int32(1 + g.rng.Intn(100)*100))
	case schema.Int64:
		g.rb.Int64(i)
	case schema.Int96:
		var v [12]byte
		binary.LittleEndian.PutUint64(v[:8], uint64(i))
		g.rb.Int96(v)
	case schema.Float:
		g.rb.Float32(float32(g.price))
	case schema.Double:
		g.rb.Float64(g.price)
	case schema.ByteArray:
		if col.Repetition == schema.Repeated {
			g.rb.String(conditions[g.rng.Intn(len(conditions))])
		} else {
			g.rb.String(symbols[g.rng.Intn(len(symbols))])
		}
	case schema.FixedByteArray:
		v := make([]byte, col.TypeLength)
		copy(v, venues[g.rng.Intn(len(venues))])
		g.rb.Fixed(v)
	}
}
