// Package watcher drives the detection-to-mitigation loop: wait for the
// dependent services, then poll the classification store, batch the new
// attacks, contextualize, generate rules, register everything, and mark the
// attacks processed. One batch at a time, one generative call in flight.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joao-k-santos/IRS-LLM/internal/auth"
	"github.com/joao-k-santos/IRS-LLM/internal/classifier"
	"github.com/joao-k-santos/IRS-LLM/internal/config"
	"github.com/joao-k-santos/IRS-LLM/internal/pipeline"
	"github.com/joao-k-santos/IRS-LLM/internal/registry"
	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Watcher owns the orchestration loop. It keeps no state across cycles
// beyond the broker's cached tokens.
type Watcher struct {
	cfg        config.WatcherConfig
	broker     *auth.Broker
	classifier *classifier.Client
	registry   *registry.Client
	contexts   *pipeline.ContextGenerator
	rules      *pipeline.RuleGenerator
	registrar  *pipeline.Registrar
	logger     *slog.Logger
}

// New wires a watcher from its collaborators.
func New(
	cfg config.WatcherConfig,
	broker *auth.Broker,
	cls *classifier.Client,
	reg *registry.Client,
	contexts *pipeline.ContextGenerator,
	rules *pipeline.RuleGenerator,
	registrar *pipeline.Registrar,
	logger *slog.Logger,
) *Watcher {
	return &Watcher{
		cfg:        cfg,
		broker:     broker,
		classifier: cls,
		registry:   reg,
		contexts:   contexts,
		rules:      rules,
		registrar:  registrar,
		logger:     logger,
	}
}

// Run blocks until ctx is canceled. Startup failures (a dependency never
// becoming healthy within the startup timeout) are fatal; everything after
// that is caught at the batch boundary and the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.waitForDependencies(ctx); err != nil {
		return err
	}

	// Prime both scopes so credential problems surface before the first poll.
	for _, scope := range []string{auth.ScopeClassifier, auth.ScopeRegistry} {
		if _, err := w.broker.Token(ctx, scope); err != nil {
			return err
		}
	}

	w.logger.Info("watcher started", "poll_interval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.cycle(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// waitForDependencies probes the classifier and registry health endpoints
// concurrently until both answer or the startup timeout elapses.
func (w *Watcher) waitForDependencies(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.StartupTimeout)
	defer cancel()

	probe := func(name string, health func(context.Context) error) func() error {
		return func() error {
			w.logger.Info("waiting for dependency", "service", name)
			for {
				if err := health(ctx); err == nil {
					w.logger.Info("dependency online", "service", name)
					return nil
				}
				select {
				case <-ctx.Done():
					return types.WrapError(types.STARTUP_DEPENDENCY_DOWN,
						name+" did not become healthy within the startup timeout", ctx.Err())
				case <-time.After(w.cfg.HealthInterval):
				}
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(probe("classifier", w.classifier.Health))
	g.Go(probe("registry", w.registry.Health))
	return g.Wait()
}

// cycle runs one poll: fetch unprocessed attacks, partition, process each
// batch in order. Errors never escape; they are logged and the next cycle
// retries whatever is still unprocessed.
func (w *Watcher) cycle(ctx context.Context) {
	nidsToken, err := w.broker.Token(ctx, auth.ScopeClassifier)
	if err != nil {
		w.logger.Error("failed to obtain classifier token", "error", err)
		return
	}

	attacks, err := w.classifier.FetchUnprocessed(ctx, nidsToken)
	if err != nil {
		w.noteAuthFailure(auth.ScopeClassifier, err)
		w.logger.Error("failed to fetch new attacks", "error", err)
		return
	}
	if len(attacks) == 0 {
		w.logger.Debug("no new attacks")
		return
	}

	batches := pipeline.Partition(attacks, w.cfg.BatchSize)
	w.logger.Info("new attacks detected", "count", len(attacks), "batches", len(batches))

	for i, batch := range batches {
		logger := w.logger.With("batch", i+1, "of", len(batches), "size", len(batch))
		if err := w.processBatch(ctx, logger, batch); err != nil {
			logger.Error("batch failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// processBatch runs the per-batch pipeline in order: contextualize, register
// contexts, generate rules, register rules, mark processed.
func (w *Watcher) processBatch(ctx context.Context, logger *slog.Logger, batch []types.AttackRecord) error {
	regToken, err := w.broker.Token(ctx, auth.ScopeRegistry)
	if err != nil {
		return err
	}
	nidsToken, err := w.broker.Token(ctx, auth.ScopeClassifier)
	if err != nil {
		return err
	}

	logger.Info("generating context")
	contexts, err := w.contexts.Generate(ctx, regToken, batch)
	if err != nil {
		w.noteAuthFailure(auth.ScopeRegistry, err)
		return err
	}
	if len(contexts) == 0 {
		logger.Warn("no usable context produced, skipping batch")
		return nil
	}

	flowIDs, err := w.registrar.RegisterContexts(ctx, regToken, contexts)
	if err != nil {
		w.noteAuthFailure(auth.ScopeRegistry, err)
		return err
	}
	logger.Info("contexts registered", "count", len(flowIDs))

	logger.Info("generating rules")
	rules, err := w.rules.Generate(ctx, regToken)
	if err != nil {
		w.noteAuthFailure(auth.ScopeRegistry, err)
		return err
	}

	if _, err := w.registrar.RegisterRules(ctx, regToken, rules, flowIDs); err != nil {
		w.noteAuthFailure(auth.ScopeRegistry, err)
		return err
	}

	if err := w.registrar.MarkProcessed(ctx, nidsToken, flowIDs); err != nil {
		w.noteAuthFailure(auth.ScopeClassifier, err)
		return err
	}
	return nil
}

// noteAuthFailure drops a cached token when a collaborator rejected it, so
// the next cycle re-authenticates. The failing operation is not retried
// within the batch.
func (w *Watcher) noteAuthFailure(scope string, err error) {
	if types.IsAuth(err) {
		w.broker.Invalidate(scope)
	}
}
