package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/joao-k-santos/IRS-LLM/internal/auth"
	"github.com/joao-k-santos/IRS-LLM/internal/llm"
	"github.com/joao-k-santos/IRS-LLM/internal/types"
)

// promptPlaceholder is the substitution point in the context template.
const promptPlaceholder = "{dados_ataques}"

// ContextGenerator turns one batch of attack records into situational
// context objects via the generative service.
type ContextGenerator struct {
	llm          *llm.Client
	model        string
	templatePath string
	tokenBudget  int
	logger       *slog.Logger
}

// NewContextGenerator creates a generator reading its prompt template from
// templatePath on every call, so template edits take effect without a
// restart.
func NewContextGenerator(client *llm.Client, model, templatePath string, tokenBudget int, logger *slog.Logger) *ContextGenerator {
	return &ContextGenerator{
		llm:          client,
		model:        model,
		templatePath: templatePath,
		tokenBudget:  tokenBudget,
		logger:       logger,
	}
}

// Generate builds the prompt for a batch and returns the extracted contexts.
// An unproductive model answer (nothing extractable) returns an empty slice
// and no error; the caller skips the batch. The bearer is checked locally
// before any network call.
func (g *ContextGenerator) Generate(ctx context.Context, token string, batch []types.AttackRecord) ([]types.Context, error) {
	if !auth.ValidLocally(token) {
		return nil, types.NewError(types.AUTH_TOKEN_EXPIRED, "bearer for generative service expired or malformed")
	}

	batch = TruncateByBudget(batch, g.tokenBudget)
	if len(batch) == 0 {
		return nil, nil
	}

	prompt, err := g.buildPrompt(batch)
	if err != nil {
		return nil, err
	}

	text, err := g.llm.Generate(ctx, g.model, prompt, token)
	if err != nil {
		return nil, err
	}

	raw, ok := llm.Extract(text)
	if !ok {
		g.logger.Warn("model answer carried no extractable JSON, skipping batch")
		return nil, nil
	}

	contexts, dropped := types.DecodeContexts(raw)
	for _, err := range dropped {
		g.logger.Warn("dropped malformed context", "error", err)
	}
	return contexts, nil
}

func (g *ContextGenerator) buildPrompt(batch []types.AttackRecord) (string, error) {
	template, err := os.ReadFile(g.templatePath)
	if err != nil {
		return "", types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read prompt template", err)
	}

	serialized, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", types.NewParseError("failed to serialize batch", err)
	}

	return strings.ReplaceAll(string(template), promptPlaceholder, string(serialized)), nil
}
