package qualify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/olvconsultores/stratevo/internal/model"
)

// ResultFinder looks up the most recent result for a company/ICP pair.
// It returns nil, nil when none exists.
type ResultFinder interface {
	LatestResult(ctx context.Context, tenantID, companyID, icpID string) (*model.QualificationResult, error)
}

// Persister records a freshly scored result and moves the company into the
// qualified state.
type Persister interface {
	Qualify(ctx context.Context, company *model.Company, result *model.QualificationResult) error
}

// RunnerConfig tunes batch qualification.
type RunnerConfig struct {
	Weights         model.Weights
	MaxConcurrency  int
	FreshnessWindow time.Duration
}

// Runner scores batches of companies against one ICP. At most one
// qualification per (company, ICP) pair runs at a time, and a pair with a
// result younger than the freshness window is not scored again.
type Runner struct {
	finder    ResultFinder
	persister Persister
	cfg       RunnerConfig
	flight    singleflight.Group
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(finder ResultFinder, persister Persister, cfg RunnerConfig) *Runner {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Weights.Sum() <= 0 {
		cfg.Weights = DefaultWeights()
	}
	return &Runner{
		finder:    finder,
		persister: persister,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Outcome is the per-company result of a batch.
type Outcome struct {
	Result *model.QualificationResult
	// Reused is true when a fresh existing result was returned instead of
	// scoring again.
	Reused bool
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Scored int64
	Reused int64
	Failed int64
	Grades map[model.Grade]int
}

// Run scores every company against icp. Individual failures are logged and
// counted without aborting the batch; cancellation stops the batch between
// companies and is returned as an error.
func (r *Runner) Run(ctx context.Context, icp *model.ICP, companies []model.Company) (*BatchSummary, error) {
	if icp == nil || !icp.HasCriteria() {
		return nil, ErrInvalidICP
	}

	log := zap.L().With(zap.String("icp", icp.ID), zap.String("tenant", icp.TenantID))
	log.Info("qualify: batch start",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", r.cfg.MaxConcurrency),
	)

	var scored, reused, failed atomic.Int64
	var mu sync.Mutex
	grades := make(map[model.Grade]int)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrency)

	for i := range companies {
		if err := gctx.Err(); err != nil {
			break
		}
		company := companies[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.QualifyOne(gctx, icp, &company)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Warn("qualify: company failed", zap.String("company", company.ID), zap.Error(err))
				return nil
			}
			if out.Reused {
				reused.Add(1)
			} else {
				scored.Add(1)
			}
			mu.Lock()
			grades[out.Result.Grade]++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	summary := &BatchSummary{
		Scored: scored.Load(),
		Reused: reused.Load(),
		Failed: failed.Load(),
		Grades: grades,
	}
	if err != nil {
		log.Warn("qualify: batch cancelled", zap.Int64("scored", summary.Scored), zap.Error(err))
		return summary, eris.Wrap(err, "qualify: batch cancelled")
	}

	log.Info("qualify: batch complete",
		zap.Int64("scored", summary.Scored),
		zap.Int64("reused", summary.Reused),
		zap.Int64("failed", summary.Failed),
	)
	return summary, nil
}

// QualifyOne scores and persists a single company, serialised per
// (tenant, company, ICP).
func (r *Runner) QualifyOne(ctx context.Context, icp *model.ICP, company *model.Company) (*Outcome, error) {
	key := icp.TenantID + "|" + company.ID + "|" + icp.ID
	v, err, _ := r.flight.Do(key, func() (any, error) {
		return r.qualify(ctx, icp, company)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (r *Runner) qualify(ctx context.Context, icp *model.ICP, company *model.Company) (*Outcome, error) {
	if r.cfg.FreshnessWindow > 0 && r.finder != nil {
		latest, err := r.finder.LatestResult(ctx, icp.TenantID, company.ID, icp.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "qualify: latest result for %s", company.ID)
		}
		if latest != nil && r.now().Sub(latest.CreatedAt) < r.cfg.FreshnessWindow {
			return &Outcome{Result: latest, Reused: true}, nil
		}
	}

	res, err := Score(company, icp, r.cfg.Weights)
	if err != nil {
		return nil, err
	}
	if err := r.persister.Qualify(ctx, company, res); err != nil {
		return nil, eris.Wrapf(err, "qualify: persist %s", company.ID)
	}
	return &Outcome{Result: res}, nil
}
