package compression

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// ParallelCompressor compresses the independent column chunks of one row
// group on a small worker set. Output order matches input order.
type ParallelCompressor struct {
	logger     *zap.Logger
	comp       Compressor
	numWorkers int

	bytesIn  int64
	bytesOut int64
}

// NewParallelCompressor wraps comp. numWorkers <= 0 means runtime.NumCPU().
func NewParallelCompressor(comp Compressor, numWorkers int, logger *zap.Logger) *ParallelCompressor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelCompressor{
		logger:     logger,
		comp:       comp,
		numWorkers: numWorkers,
	}
}

// Codec returns the wrapped codec id.
func (pc *ParallelCompressor) Codec() Codec {
	return pc.comp.Codec()
}

type chunkJob struct {
	id   int
	data []byte
}

// CompressChunks compresses every chunk and returns the results in input
// order. The first error cancels the remaining work.
func (pc *ParallelCompressor) CompressChunks(ctx context.Context, chunks [][]byte) ([][]byte, error) {
	out := make([][]byte, len(chunks))
	if len(chunks) == 0 {
		return out, nil
	}
	// Uncompressed or single chunks gain nothing from fan-out.
	if pc.comp.Codec() == None || len(chunks) == 1 || pc.numWorkers == 1 {
		for i, c := range chunks {
			compressed, err := pc.comp.Compress(c)
			if err != nil {
				return nil, err
			}
			pc.account(len(c), len(compressed))
			out[i] = compressed
		}
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := pc.numWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	jobs := make(chan chunkJob)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				compressed, err := pc.comp.Compress(job.data)
				if err != nil {
					errOnce.Do(func() {
						firstErr = flowerrors.Wrap(err, flowerrors.CodeInternal, "chunk compression failed").
							WithDetail("chunk", job.id)
						cancel()
					})
					continue
				}
				pc.account(len(job.data), len(compressed))
				out[job.id] = compressed
			}
		}()
	}

feed:
	for i, c := range chunks {
		select {
		case jobs <- chunkJob{id: i, data: c}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, flowerrors.Wrap(err, flowerrors.CodeInternal, "chunk compression cancelled")
	}
	return out, nil
}

func (pc *ParallelCompressor) account(in, out int) {
	atomic.AddInt64(&pc.bytesIn, int64(in))
	atomic.AddInt64(&pc.bytesOut, int64(out))
}

// Stats returns total uncompressed and compressed bytes processed.
func (pc *ParallelCompressor) Stats() (bytesIn, bytesOut int64) {
	return atomic.LoadInt64(&pc.bytesIn), atomic.LoadInt64(&pc.bytesOut)
}

// Ratio returns compressed/uncompressed over the lifetime of pc.
func (pc *ParallelCompressor) Ratio() float64 {
	in, out := pc.Stats()
	if in == 0 {
		return 0
	}
	return float64(out) / float64(in)
}
