package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-k-santos/IRS-LLM/internal/classifier"
	"github.com/joao-k-santos/IRS-LLM/internal/registry"
	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// Registrar persists generated contexts and rules through the rule/context
// store and records processed-state in the classification store. Validation
// happens here, object by object: a malformed object is dropped, never the
// whole batch.
type Registrar struct {
	registry   *registry.Client
	classifier *classifier.Client
	logger     *slog.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(reg *registry.Client, cls *classifier.Client, logger *slog.Logger) *Registrar {
	return &Registrar{registry: reg, classifier: cls, logger: logger}
}

// RegisterContexts validates and persists each context, returning the flow
// ids that were actually registered, in input order.
func (r *Registrar) RegisterContexts(ctx context.Context, token string, contexts []types.Context) ([]string, error) {
	flowIDs := make([]string, 0, len(contexts))
	for _, c := range contexts {
		if err := c.Validate(); err != nil {
			r.logger.Warn("dropping invalid context", "flow_id", c.FlowID, "error", err)
			continue
		}
		if err := r.registry.RegisterContext(ctx, token, c); err != nil {
			return flowIDs, err
		}
		flowIDs = append(flowIDs, c.FlowID)
	}
	return flowIDs, nil
}

// RegisterRules validates and persists each rule, stamping it with the
// batch's ordered flow-id list. Beyond the structural checks, any comando
// containing a trusted IP literal is rejected: the prompt asks the model to
// spare trusted devices, but the store never has to rely on the model
// honoring that.
func (r *Registrar) RegisterRules(ctx context.Context, token string, rules []types.Rule, flowIDs []string) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}

	trusted, err := r.registry.ListTrustedDevices(ctx, token)
	if err != nil {
		return 0, err
	}

	batchID := uuid.NewString()
	registered := 0
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			r.logger.Warn("dropping invalid rule", "batch_id", batchID, "error", err)
			continue
		}
		if ip := trustedIPIn(rule.Comando, trusted); ip != "" {
			r.logger.Warn("dropping rule targeting trusted device",
				"batch_id", batchID, "ip", ip, "descricao", rule.Descricao)
			continue
		}
		rule.AtaqueID = flowIDs
		if err := r.registry.RegisterRule(ctx, token, rule); err != nil {
			return registered, err
		}
		registered++
	}
	r.logger.Info("rules registered", "batch_id", batchID, "count", registered, "dropped", len(rules)-registered)
	return registered, nil
}

// MarkProcessed flips processado for every flow id. Each mark is idempotent
// and safe to retry at the next cycle if this one is interrupted.
func (r *Registrar) MarkProcessed(ctx context.Context, token string, flowIDs []string) error {
	for _, id := range flowIDs {
		if err := r.classifier.MarkProcessed(ctx, token, id); err != nil {
			return err
		}
		r.logger.Debug("attack marked processed", "flow_id", id)
	}
	return nil
}

func trustedIPIn(comando string, trusted []string) string {
	for _, ip := range trusted {
		if ip != "" && strings.Contains(comando, ip) {
			return ip
		}
	}
	return ""
}
