// Command jobmatch runs a single match request against the configured
// stores and prints the response as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"jobmatch/pkg/blacklist"
	"jobmatch/pkg/cache"
	"jobmatch/pkg/config"
	"jobmatch/pkg/dal"
	"jobmatch/pkg/explain"
	"jobmatch/pkg/logging"
	"jobmatch/pkg/model"
	"jobmatch/pkg/pipeline"
	"jobmatch/pkg/rerank"
	"jobmatch/pkg/retriever"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	requestPath := flag.String("request", "", "path to a JSON match request")
	genConfig := flag.Bool("generate-config", false, "write a default config file and exit")
	flag.Parse()

	if *genConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	if err := run(*configPath, *requestPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, requestPath string) error {
	if requestPath == "" {
		return fmt.Errorf("a request file is required (-request)")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(&cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	data, err := os.ReadFile(requestPath)
	if err != nil {
		return fmt.Errorf("failed to read request file: %w", err)
	}
	var req model.MatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse request file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := dal.Open(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	lists, err := blacklist.Connect(&cfg.Redis, log)
	if err != nil {
		return err
	}
	defer lists.Close()

	// An empty taxonomy turns off related-skill matching while keeping the
	// rest of the explanation sections.
	taxonomy := explain.Taxonomy{}
	if cfg.Pipeline.EnableSkillGraph {
		taxonomy = explain.DefaultTaxonomy()
	}

	p := pipeline.New(cfg, log,
		retriever.New(store, cfg, log),
		lists,
		rerank.New(cfg, log),
		explain.New(taxonomy),
		cache.New(cfg.Cache.TTL.Std(), cfg.Cache.SoftCap, log))

	resp, err := p.Match(ctx, &req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	log.Info("done", zap.Int("jobs", len(resp.Jobs)))
	return nil
}
