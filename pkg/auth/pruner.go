package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// Pruner periodically drops expired tokens from the store on a cron
// schedule, keeping file-backed stores from accumulating dead
// credentials.
type Pruner struct {
	cron   *cron.Cron
	store  TokenStore
	logger *logging.Logger
	clock  func() time.Time
}

// NewPruner creates a pruner over the store. The schedule uses standard
// five-field cron syntax and is validated up front.
func NewPruner(store TokenStore, schedule string, logger *logging.Logger) (*Pruner, error) {
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}

	pruner := &Pruner{
		cron:   cron.New(),
		store:  store,
		logger: logger.Component("auth.pruner"),
		clock:  time.Now,
	}
	if _, err := pruner.cron.AddFunc(schedule, pruner.prune); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return pruner, nil
}

// Start begins scheduling prune runs.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pruned, err := p.store.PruneExpired(ctx, p.clock())
	if err != nil {
		p.logger.Warn("token prune failed", "error", err)
		return
	}
	if pruned > 0 {
		p.logger.Info("pruned expired tokens", "count", pruned)
	}
}
