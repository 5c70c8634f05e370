// Package diaselect selects, for each scored precursor in a DIA
// acquisition, the most likely elution apexes and their chromatographic
// and ion-mobility boundaries from a TIMS-TOF run's raw signal.
package diaselect

import (
	"context"
	"fmt"

	"github.com/example/diaselect/internal/config"
	"github.com/example/diaselect/internal/executor"
	"github.com/example/diaselect/internal/logging"
	"github.com/example/diaselect/internal/model"
	"github.com/example/diaselect/internal/rawindex"
	"github.com/example/diaselect/internal/scoregroup"
)

// Run selects candidates for every elution group in precursors against the
// raw acquisition idx, using cfg's tunables. An empty precursor table
// yields an empty candidate table and a nil error; a
// structurally invalid precursor or fragment table yields a
// *model.SchemaError and no candidates. obs may be nil.
func Run(
	ctx context.Context,
	cfg config.Config,
	idx *rawindex.RawIndex,
	precursors []model.Precursor,
	fragments []model.Fragment,
	obs scoregroup.Observer,
) ([]model.Candidate, error) {
	logger := logging.New(cfg.LogLevel)

	if len(precursors) == 0 {
		logger.Info("empty precursor table, no candidates to select")
		return nil, nil
	}

	if err := model.ValidateFragmentRanges(precursors, len(fragments)); err != nil {
		return nil, fmt.Errorf("diaselect: %w", err)
	}

	byElutionGroup := make(map[uint32][]model.Precursor)
	for _, p := range precursors {
		byElutionGroup[p.ElutionGroupIdx] = append(byElutionGroup[p.ElutionGroupIdx], p)
	}

	if err := model.ValidateScoreGroupIDs(byElutionGroup); err != nil {
		return nil, fmt.Errorf("diaselect: %w", err)
	}

	groups, err := model.BuildElutionGroups(precursors, cfg.Selection.RTColumn, cfg.Selection.MobilityColumn)
	if err != nil {
		return nil, fmt.Errorf("diaselect: %w", err)
	}

	logger.Info("built elution groups", "count", len(groups), "thread_count", cfg.Runtime.ThreadCount, "debug", cfg.Runtime.Debug)

	engine := scoregroup.New(idx, fragments, cfg, obs)
	exec := executor.New(engine, cfg.Runtime, cfg.Selection)

	candidates, err := exec.Run(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("diaselect: %w", err)
	}

	logger.Info("selection complete", "candidates", len(candidates))

	return candidates, nil
}
