package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/seo-forecaster/backend/analyzer"
	"github.com/seo-forecaster/backend/brief"
	"github.com/seo-forecaster/backend/cachedb"
	"github.com/seo-forecaster/backend/config"
	"github.com/seo-forecaster/backend/intent"
	"github.com/seo-forecaster/backend/llm"
	"github.com/seo-forecaster/backend/logging"
	"github.com/seo-forecaster/backend/metrics"
	"github.com/seo-forecaster/backend/planner"
	"github.com/seo-forecaster/backend/rankmodel"
	"github.com/seo-forecaster/backend/scoring"
	"github.com/seo-forecaster/backend/semantic"
	"github.com/seo-forecaster/backend/serp"
	"github.com/seo-forecaster/backend/server"
	"github.com/seo-forecaster/backend/stats"
	"github.com/seo-forecaster/backend/store"
)

const (
	shutdownTimeout = 15 * time.Second
	// usage counters older than this many months are dropped at startup
	statsRetainMonths = 12
)

func loadEnv() {
	// .env.development wins for local runs; a missing file is fine
	_ = godotenv.Load(".env.development")
	_ = godotenv.Load()
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	planner  *planner.Planner
	usage    *logging.Statistics
	closers  []func() error
	pages    *analyzer.Analyzer
	counters *stats.Storage
}

func newApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	cfg, logger := a.cfg, a.logger

	model, err := rankmodel.Load(cfg.Model.ModelFile, cfg.Model.FeatureListFile)
	if err != nil {
		return fmt.Errorf("load ranking model: %w", err)
	}

	a.counters, err = stats.NewStorage(cfg.Server.DataDir, logger)
	if err != nil {
		return fmt.Errorf("open usage counters: %w", err)
	}
	a.closers = append(a.closers, a.counters.Shutdown)
	a.counters.Cleanup(statsRetainMonths)
	metrics.Init(a.counters)

	a.usage, err = logging.NewStatistics(cfg.Server.DataDir, strings.EqualFold(cfg.Server.Env, "development"))
	if err != nil {
		return fmt.Errorf("load statistics: %w", err)
	}

	a.store, err = store.Open(cfg.Database.RecordsPath, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.store.Close)

	cache, err := cachedb.Open(cfg.Database.SerpCachePath, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, cache.Close)
	metrics.RegisterCache(cache, logger)

	a.pages = analyzer.New(analyzer.Options{
		Timeout:             cfg.Serp.FetchTimeout,
		SyllableSampleWords: cfg.Text.SyllableSampleWords,
	}, a.counters, logger)

	var embedder semantic.Embedder
	if cfg.LLM.OpenAIAPIKey != "" {
		embedder = semantic.NewOpenAIEmbedder(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL, cfg.LLM.EmbeddingModel, logger)
	} else {
		logger.Info("no embedding key, semantic scores disabled")
	}

	var authority serp.AuthorityProvider
	if cfg.Serp.SERankingKey != "" {
		authority = serp.NewSERanking(cfg.Serp.SERankingKey, cfg.Serp.SERankingURL, logger)
	} else {
		logger.Warn("no authority key, domain metrics will assume parity")
	}

	enricherOpts := []serp.Option{serp.WithStats(a.counters)}
	if embedder != nil {
		enricherOpts = append(enricherOpts, serp.WithEmbedder(embedder))
	}
	enricher := serp.NewEnricher(serp.EnricherConfig{
		Location:         cfg.Serp.Location,
		ResultsCount:     cfg.Serp.ResultsCount,
		TopN:             cfg.Serp.TopN,
		FetchConcurrency: cfg.Serp.FetchConcurrency,
		Guards: serp.Guards{
			ReadabilityFloor:   cfg.Serp.ReadabilityFloor,
			ReadabilityDefault: cfg.Serp.ReadabilityDefault,
			WordCountFloor:     cfg.Serp.WordCountFloor,
			WordCountDefault:   cfg.Serp.WordCountDefault,
		},
	}, serp.NewSerpAPI(cfg.Serp.SerpAPIKey, cfg.Serp.SerpAPIURL, logger), authority, a.pages, cache, logger, enricherOpts...)

	engine := scoring.NewEngine(model, scoring.NewIntentScorer(embedder, logger), logger,
		scoring.WithCalibration(cfg.Scoring.Calibrate))
	runner := scoring.NewRunner(cfg.Scoring.BatchConcurrency, cfg.Scoring.KeywordTimeout, a.counters, logger)

	client := llm.FromConfig(cfg.LLM, logger)
	briefOpts := []brief.Option{brief.WithStats(a.counters)}
	if client != nil {
		briefOpts = append(briefOpts, brief.WithWriter(brief.NewLLMWriter(client, logger)))
	}
	if embedder != nil {
		briefOpts = append(briefOpts, brief.WithEmbedder(embedder))
	}
	synth := brief.NewSynthesizer(intent.FromClient(client, logger), a.pages, logger, briefOpts...)

	a.planner = planner.New(a.store, enricher, engine, runner, synth, logger, planner.WithUsage(a.usage))
	return nil
}

func (a *app) close() {
	if a.pages != nil {
		a.pages.Shutdown()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func serveAction(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	gin.SetMode(a.cfg.Server.GinMode)
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg.Server, a.planner, a.store, a.usage, a.logger)
	return srv.Run(ctx, shutdownTimeout)
}

func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid keyword id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func scoreAction(c *cli.Context) error {
	ids, err := parseIDs(c.String("keyword-ids"))
	if err != nil {
		return err
	}
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listID := uint(c.Uint("list"))
	var report *planner.Report
	if len(ids) > 0 {
		report, err = a.planner.ScoreSelected(ctx, listID, ids, c.Bool("force"))
	} else {
		report, err = a.planner.ScoreList(ctx, listID, c.Bool("force"))
	}
	if err != nil {
		return err
	}
	return write(c.App.Writer, report, "json")
}

func briefAction(c *cli.Context) error {
	format := strings.ToLower(c.String("format"))
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q", format)
	}
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.close()

	req := planner.BriefRequest{
		KeywordID:    uint(c.Uint("keyword-id")),
		TargetIntent: c.String("intent"),
		ForceRefresh: c.Bool("force-refresh"),
	}
	if url := c.String("existing-url"); url != "" {
		req.ContentType = planner.ContentExisting
		req.ExistingURL = url
	}
	b, err := a.planner.GenerateBrief(c.Context, req)
	if err != nil {
		return err
	}
	return write(c.App.Writer, b, format)
}

// write prints v as indented JSON or YAML. YAML goes through JSON first
// so field names and the brief mode match the API.
func write(w io.Writer, v any, format string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

func newCLI() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.yaml",
		Usage:   "path to the YAML configuration file",
		EnvVars: []string{"CONFIG_PATH"},
	}
	return &cli.App{
		Name:   "forecaster",
		Usage:  "keyword opportunity scoring and content briefs",
		Flags:  []cli.Flag{configFlag},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Flags:  []cli.Flag{configFlag},
				Action: serveAction,
			},
			{
				Name:  "score",
				Usage: "score the keywords of a list and print the batch report",
				Flags: []cli.Flag{
					configFlag,
					&cli.UintFlag{Name: "list", Usage: "keyword list id", Required: true},
					&cli.StringFlag{Name: "keyword-ids", Usage: "comma separated keyword ids; all keywords when empty"},
					&cli.BoolFlag{Name: "force", Usage: "rescore keywords that already have a score and refresh their SERPs"},
				},
				Action: scoreAction,
			},
			{
				Name:  "brief",
				Usage: "generate, store and print a content brief",
				Flags: []cli.Flag{
					configFlag,
					&cli.UintFlag{Name: "keyword-id", Usage: "keyword id", Required: true},
					&cli.StringFlag{Name: "existing-url", Usage: "diff this page instead of briefing new content"},
					&cli.StringFlag{Name: "intent", Usage: "override the classified intent"},
					&cli.BoolFlag{Name: "force-refresh", Usage: "bypass the SERP cache"},
					&cli.StringFlag{Name: "format", Value: "json", Usage: "output format: json or yaml"},
				},
				Action: briefAction,
			},
		},
	}
}

func main() {
	loadEnv()
	if err := newCLI().RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
