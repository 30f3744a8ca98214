package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chr1sbest/pipegate/internal/banner"
	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/discovery"
	"github.com/chr1sbest/pipegate/internal/killswitch"
	"github.com/chr1sbest/pipegate/internal/logger"
	"github.com/chr1sbest/pipegate/internal/packaging"
	"github.com/chr1sbest/pipegate/internal/pipeline"
	"github.com/chr1sbest/pipegate/internal/product"
	"github.com/chr1sbest/pipegate/internal/runstate"
	"github.com/chr1sbest/pipegate/internal/sources"
	"github.com/chr1sbest/pipegate/internal/status"
)

// parseFlags parses args into fs. ok is false when the command should exit
// with code right away.
func parseFlags(fs *flag.FlagSet, args []string) (ok bool, code int) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, 0
		}
		return false, 1
	}
	return true, 0
}

func loadConfig(path string) (*config.Config, bool) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return nil, false
	}
	return cfg, true
}

func runCmd(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configFile := fs.String("config", config.DefaultFileName, "Path to config file")
	verbose := fs.Bool("verbose", false, "Log to stdout in addition to the run log")
	quiet := fs.Bool("quiet", false, "Suppress progress and the final status table")
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	cfg, ok := loadConfig(*configFile)
	if !ok {
		return pipeline.ExitFailed
	}

	level := logger.ParseLevel(cfg.Log.Level)
	var base logger.Logger = logger.NewNoopLogger()
	if *verbose {
		base = logger.New(stdout, level)
	}

	collab, err := buildCollaborators(cfg, base)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return pipeline.ExitFailed
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(base),
		pipeline.WithRunLogs(cfg.LogsDir(), level),
		pipeline.WithCarryForward(cfg.Approval.CarryForwardEnabled()),
		pipeline.WithKillWatch(true),
	}
	if !*quiet {
		banner.NewWithWriter(stdout).Print(cfg, killswitch.ForRunsDir(cfg.RunsDir()).IsKilled())
		if !*verbose {
			opts = append(opts, pipeline.WithProgress(status.NewWithWriter(stdout)))
		}
	}
	orch := pipeline.New(cfg.RunsDir(), collab, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orch.Run(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return pipeline.ExitFailed
	}

	if !*quiet {
		fmt.Fprintln(stdout, status.Render(res.State))
	}
	fmt.Fprintln(stdout, status.Summary(res.State))
	if url := res.State.Paths[runstate.PathPublishedURL]; url != "" {
		fmt.Fprintf(stdout, "Published: %s\n", url)
	}
	return res.ExitCode()
}

// buildCollaborators wires the concrete step implementations from cfg.
func buildCollaborators(cfg *config.Config, log logger.Logger) (pipeline.Collaborators, error) {
	var srcs []sources.Source
	if cfg.Sources.HN.IsEnabled() {
		srcs = append(srcs, sources.NewHNAlgolia(cfg.Sources.HN, nil))
	}
	if cfg.Sources.Reddit.Enabled {
		srcs = append(srcs, sources.NewReddit(cfg.Sources.Reddit, nil))
	}

	var pkgOpts []packaging.Option
	if cfg.Publish.S3.Enabled {
		pub, err := packaging.NewS3Publisher(cfg.Publish.S3)
		if err != nil {
			return pipeline.Collaborators{}, fmt.Errorf("configure s3 publish: %w", err)
		}
		log.Info("Bundle upload enabled", logger.F("endpoint", cfg.Publish.S3.Endpoint), logger.F("bucket", cfg.Publish.S3.Bucket))
		pkgOpts = append(pkgOpts, packaging.WithPublisher(pub))
	}

	return pipeline.Collaborators{
		Fetcher:   sources.NewMulti(srcs...),
		Extractor: discovery.NewExtractor(),
		Ranker:    discovery.NewRanker(),
		Definer:   product.NewDefiner(),
		Generator: product.NewTemplatePackGenerator(),
		Packager:  packaging.New(cfg.BundlesDir(), cfg.Pricing, pkgOpts...),
	}, nil
}
