// Package executor fans a run's elution groups out across a worker pool
// and assembles their candidates into one deterministically ordered table.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/example/diaselect/internal/config"
	"github.com/example/diaselect/internal/model"
)

// debugIterationLimit bounds the number of elution groups a debug-mode run
// processes, so a developer iterating on the pipeline gets a fast,
// single-threaded run instead of the full run's worth of work.
const debugIterationLimit = 100

// ScoreGroupEngine runs the per-score-group selection pipeline. It is
// satisfied by *scoregroup.Engine; the interface lets the executor be
// tested without the full rawindex/fourier stack.
type ScoreGroupEngine interface {
	Process(sg model.ScoreGroup) ([]model.Candidate, error)
}

// ParallelExecutor runs ScoreGroupEngine.Process across every score group
// of every elution group, keyed by elution-group index, using a bounded
// worker pool.
type ParallelExecutor struct {
	Engine    ScoreGroupEngine
	Runtime   config.RuntimeConfig
	Selection config.SelectionConfig
}

// New builds a ParallelExecutor.
func New(engine ScoreGroupEngine, runtime config.RuntimeConfig, selection config.SelectionConfig) *ParallelExecutor {
	return &ParallelExecutor{Engine: engine, Runtime: runtime, Selection: selection}
}

// Run processes every elution group and returns the combined candidate
// table, ordered by elution-group index ascending, then rank ascending,
// with ties broken by (scan, cycle) ascending.
func (e *ParallelExecutor) Run(ctx context.Context, groups []model.ElutionGroup) ([]model.Candidate, error) {
	maxGoroutines := e.Runtime.ThreadCount
	if maxGoroutines <= 0 {
		maxGoroutines = 1
	}

	limit := len(groups)

	if e.Runtime.Debug {
		maxGoroutines = 1

		if limit > debugIterationLimit {
			limit = debugIterationLimit
		}
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(maxGoroutines)

	var mu sync.Mutex
	var all []model.Candidate

	for i := 0; i < limit; i++ {
		eg := groups[i]

		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			local, err := e.processElutionGroup(eg)
			if err != nil {
				return err
			}

			mu.Lock()
			all = append(all, local...)
			mu.Unlock()

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	sortCandidates(all)

	return all, nil
}

func (e *ParallelExecutor) processElutionGroup(eg model.ElutionGroup) ([]model.Candidate, error) {
	scoreGroups, err := model.BuildScoreGroups(eg, e.Selection)
	if err != nil {
		return nil, fmt.Errorf("elution group %d: %w", eg.Idx, err)
	}

	var local []model.Candidate

	for _, sg := range scoreGroups {
		candidates, err := e.Engine.Process(sg)
		if err != nil {
			return nil, fmt.Errorf("elution group %d score group %d: %w", eg.Idx, sg.Idx, err)
		}

		local = append(local, candidates...)
	}

	return local, nil
}

func sortCandidates(all []model.Candidate) {
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]

		if a.ElutionGroupIdx != b.ElutionGroupIdx {
			return a.ElutionGroupIdx < b.ElutionGroupIdx
		}

		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}

		if a.ScanCenter != b.ScanCenter {
			return a.ScanCenter < b.ScanCenter
		}

		return a.FrameCenter < b.FrameCenter
	})
}
