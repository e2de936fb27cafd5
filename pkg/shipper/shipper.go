// Package shipper moves closed output files to long-term storage.
//
// A Sink reports each durably closed file through its OnFileClosed hook.
// The hook runs on the consumer goroutine, so it should hand the file to a
// Queue, which uploads on its own workers.
package shipper

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/parquetflow/pkg/config"
	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
	"github.com/ajitpratap0/parquetflow/pkg/format"
)

// Shipper uploads one closed file.
type Shipper interface {
	Ship(ctx context.Context, path string, md *format.FileMetadata) error
}

// Nop keeps files where they are.
type Nop struct{}

// Ship implements Shipper.
func (Nop) Ship(context.Context, string, *format.FileMetadata) error { return nil }

// FromConfig builds the shipper selected by cfg.Kind.
func FromConfig(ctx context.Context, cfg config.ShipperConfig, log *zap.Logger) (Shipper, error) {
	switch cfg.Kind {
	case "", "none":
		return Nop{}, nil
	case "s3":
		return NewS3(ctx, cfg, log)
	}
	return nil, flowerrors.Newf(flowerrors.CodeInvalidArgument, "unknown shipper kind %q", cfg.Kind)
}
