package service

import (
	"context"
	"fmt"
	"runtime"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/scenario"
	"golang.org/x/sync/errgroup"
)

func (s *InventoryService) Simulate(ctx context.Context, params domain.ScenarioParameters, opts ...scenario.Option) (domain.ScenarioResult, error) {
	return s.simulator.Run(ctx, params, opts...)
}

// Compare runs the scenarios concurrently, one goroutine per CPU, and ranks them by score.
// Each run works on its own snapshot so results match sequential runs with the same seed.
func (s *InventoryService) Compare(ctx context.Context, list []domain.ScenarioParameters, opts ...scenario.Option) ([]domain.ScenarioResult, error) {
	results := make([]domain.ScenarioResult, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, params := range list {
		i, params := i, params
		g.Go(func() error {
			r, err := s.simulator.Run(gctx, params, opts...)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", params.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scenario.Rank(results)
	return results, nil
}

func (s *InventoryService) StockoutImpact(articleID string, days int) (scenario.Impact, error) {
	return s.simulator.StockoutImpact(articleID, days)
}
