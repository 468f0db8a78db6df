package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joao-k-santos/IRS-LLM/internal/auth"
	"github.com/joao-k-santos/IRS-LLM/internal/classifier"
	"github.com/joao-k-santos/IRS-LLM/internal/config"
	"github.com/joao-k-santos/IRS-LLM/internal/llm"
	"github.com/joao-k-santos/IRS-LLM/internal/logging"
	"github.com/joao-k-santos/IRS-LLM/internal/pipeline"
	"github.com/joao-k-santos/IRS-LLM/internal/registry"
	"github.com/joao-k-santos/IRS-LLM/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the detection-to-mitigation watcher in the foreground",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(cfg.Logging, os.Stdout)

	broker := auth.NewBroker(map[string]auth.Credentials{
		auth.ScopeClassifier: {
			BaseURL:  cfg.Classifier.BaseURL,
			Username: cfg.Classifier.Username,
			Password: cfg.Classifier.Password,
		},
		auth.ScopeRegistry: {
			BaseURL:  cfg.Registry.BaseURL,
			Username: cfg.Registry.Username,
			Password: cfg.Registry.Password,
		},
	})

	cls := classifier.NewClient(cfg.Classifier.BaseURL)
	reg := registry.NewClient(cfg.Registry.BaseURL)
	gen := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.KeepAlive, cfg.LLM.RequestTimeout)

	contexts := pipeline.NewContextGenerator(gen, cfg.LLM.Model, cfg.Watcher.PromptTemplate, cfg.Watcher.TokenBudget, logger)
	rules := pipeline.NewRuleGenerator(gen, reg, cfg.LLM.Model, logger)
	registrar := pipeline.NewRegistrar(reg, cls, logger)

	w := watcher.New(cfg.Watcher, broker, cls, reg, contexts, rules, registrar, logger)
	return w.Run(cmd.Context())
}
