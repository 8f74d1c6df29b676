package match

import (
	"context"

	"github.com/aldr4GO/celebtwin/internal/domain"
	"github.com/aldr4GO/celebtwin/internal/invoker"
	"github.com/aldr4GO/celebtwin/internal/staging"
)

// Stager writes uploads to disk, registering every path with the tracker.
type Stager interface {
	Stage(ctx context.Context, t staging.Tracker, assets ...domain.UploadedAsset) ([]domain.StagedFile, error)
}

// Runner launches the inference process.
type Runner interface {
	Run(ctx context.Context, spec invoker.Spec) (invoker.Output, error)
}
