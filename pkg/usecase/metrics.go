package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/model/metrics"
	"github.com/m-mizutani/komainu/pkg/domain/types"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

// GetMetrics aggregates the snapshot log for one prompt, or everything
// when promptID is empty.
func (uc *UseCases) GetMetrics(ctx context.Context, promptID types.PromptID) (*metrics.Metrics, error) {
	return uc.monitor.GetMetrics(promptID), nil
}

// ExportMetrics bundles the raw snapshots with the aggregate, archiving
// a copy when a storage repository is configured.
func (uc *UseCases) ExportMetrics(ctx context.Context) (*metrics.Export, error) {
	export := uc.monitor.Export()

	if uc.storageRepo != nil {
		if err := uc.storageRepo.SaveMetricsExport(ctx, export); err != nil {
			return nil, goerr.Wrap(err, "failed to archive metrics export",
				goerr.T(apperr.ErrTagStorage))
		}
	}

	return export, nil
}

// CheckHealth reduces current alerts to a boolean plus issue list
func (uc *UseCases) CheckHealth(ctx context.Context) *metrics.Health {
	return uc.monitor.CheckHealth()
}

// FormatReport renders the human-readable metrics summary
func (uc *UseCases) FormatReport(ctx context.Context, promptID types.PromptID) string {
	return uc.monitor.FormatReport(promptID)
}
