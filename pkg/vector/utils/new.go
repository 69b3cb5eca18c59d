// Package vectorutils builds a vector.Driver from configuration.
package vectorutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/dechat/pkg/vector"
	"github.com/papercomputeco/dechat/pkg/vector/chroma"
	"github.com/papercomputeco/dechat/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	// ProviderType is "sqlite" or "chroma".
	ProviderType string

	// Target is the database path for sqlite or the server URL for chroma.
	Target string

	// Dimensions is required by the sqlite provider.
	Dimensions uint

	Logger *slog.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "chroma":
		return chroma.NewDriver(chroma.Config{
			URL: o.Target,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %q (available: sqlite, chroma)", o.ProviderType)
	}
}
