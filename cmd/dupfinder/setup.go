package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/iobis/dupfinder"
	"github.com/iobis/dupfinder/blobstore"
	blobminio "github.com/iobis/dupfinder/blobstore/minio"
	blobs3 "github.com/iobis/dupfinder/blobstore/s3"
	"github.com/iobis/dupfinder/codec"
	"github.com/iobis/dupfinder/distance"
	"github.com/iobis/dupfinder/internal/config"
	"github.com/iobis/dupfinder/metadata"
	prommetrics "github.com/iobis/dupfinder/metrics/prometheus"
	"github.com/iobis/dupfinder/occurrence"
	"github.com/iobis/dupfinder/results"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// flagBinding copies a flag into the config when the user set it.
type flagBinding struct {
	name  string
	apply func(cmd *cobra.Command, cfg *config.Config) error
}

func stringFlag(name string, dst func(*config.Config) *string) flagBinding {
	return flagBinding{name: name, apply: func(cmd *cobra.Command, cfg *config.Config) error {
		v, err := cmd.Flags().GetString(name)
		*dst(cfg) = v
		return err
	}}
}

func intFlag(name string, dst func(*config.Config) *int) flagBinding {
	return flagBinding{name: name, apply: func(cmd *cobra.Command, cfg *config.Config) error {
		v, err := cmd.Flags().GetInt(name)
		*dst(cfg) = v
		return err
	}}
}

var bindings = []flagBinding{
	stringFlag("log-level", func(c *config.Config) *string { return &c.Log.Level }),
	stringFlag("log-format", func(c *config.Config) *string { return &c.Log.Format }),
	stringFlag("storage", func(c *config.Config) *string { return &c.Storage.Backend }),
	stringFlag("storage-path", func(c *config.Config) *string { return &c.Storage.Path }),
	stringFlag("bucket", func(c *config.Config) *string { return &c.Storage.Bucket }),
	stringFlag("prefix", func(c *config.Config) *string { return &c.Storage.Prefix }),
	stringFlag("endpoint", func(c *config.Config) *string { return &c.Storage.Endpoint }),
	stringFlag("run-dir", func(c *config.Config) *string { return &c.Run.Dir }),
	stringFlag("metrics-addr", func(c *config.Config) *string { return &c.Metrics.Addr }),
	stringFlag("input", func(c *config.Config) *string { return &c.Input.Path }),
	stringFlag("postgres-dsn", func(c *config.Config) *string { return &c.Input.Postgres.DSN }),
	stringFlag("metric", func(c *config.Config) *string { return &c.Run.Metric }),
	stringFlag("compression", func(c *config.Config) *string { return &c.Run.Compression }),
	stringFlag("metadata", func(c *config.Config) *string { return &c.Metadata.Source }),
	stringFlag("metadata-path", func(c *config.Config) *string { return &c.Metadata.Path }),
	stringFlag("metadata-url", func(c *config.Config) *string { return &c.Metadata.URL }),
	intFlag("precision", func(c *config.Config) *int { return &c.Run.Precision }),
	intFlag("workers", func(c *config.Config) *int { return &c.Run.Workers }),
	intFlag("chunk-size", func(c *config.Config) *int { return &c.Run.ChunkSize }),
	intFlag("limit", func(c *config.Config) *int { return &c.Shortlist.Limit }),
	{name: "blob-input", apply: func(cmd *cobra.Command, cfg *config.Config) error {
		v, err := cmd.Flags().GetBool("blob-input")
		cfg.Input.Blob = v
		return err
	}},
	{name: "threshold", apply: func(cmd *cobra.Command, cfg *config.Config) error {
		v, err := cmd.Flags().GetFloat64("threshold")
		cfg.Shortlist.Threshold = v
		return err
	}},
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		if f := cmd.Flags().Lookup(b.name); f == nil || !f.Changed {
			continue
		}
		if err := b.apply(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*dupfinder.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if strings.EqualFold(cfg.Format, "json") {
		return dupfinder.NewJSONLogger(level), nil
	}
	return dupfinder.NewTextLogger(level), nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case "local":
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, err
		}
		return blobstore.NewLocalStore(cfg.Path), nil
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return blobs3.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("creating minio client: %w", err)
		}
		return blobminio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// openSource returns the occurrence source and a function releasing it.
func openSource(ctx context.Context, cfg config.InputConfig, store blobstore.BlobStore) (occurrence.Source, func(), error) {
	if cfg.Postgres.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		table := occurrence.DefaultPostgresTable()
		table.Schema = cfg.Postgres.Schema
		if cfg.Postgres.Table != "" {
			table.Table = cfg.Postgres.Table
		}
		table.Columns = cfg.Columns
		src, err := occurrence.NewPostgresSource(pool, table)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return src, pool.Close, nil
	}

	if cfg.Path == "" {
		return nil, nil, errors.New("no input: set --input or --postgres-dsn")
	}
	opts := []occurrence.DelimitedOption{
		occurrence.WithColumns(cfg.Columns),
		occurrence.WithSkipMalformed(cfg.SkipMalformed),
	}
	if cfg.Comma != "" {
		opts = append(opts, occurrence.WithComma([]rune(cfg.Comma)[0]))
	}
	if cfg.Blob {
		return occurrence.NewBlobSource(store, cfg.Path, opts...), func() {}, nil
	}
	return occurrence.NewFileSource(cfg.Path, opts...), func() {}, nil
}

// openLookup returns the metadata lookup and a function releasing it.
// Remote lookups are cached for the duration of the command.
func openLookup(ctx context.Context, cfg config.MetadataConfig) (metadata.Lookup, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case "none", "":
		return nil, noop, nil
	case "json":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		m, err := metadata.LoadJSON(f, codec.Default)
		if err != nil {
			return nil, nil, err
		}
		return m, noop, nil
	case "sqlite":
		l, err := metadata.OpenSQLite(ctx, cfg.Path, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return metadata.NewCached(l), func() { _ = l.Close() }, nil
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("loading AWS config: %w", err)
		}
		l := metadata.NewDynamoLookup(dynamodb.NewFromConfig(awsCfg), cfg.Table)
		return metadata.NewCached(l), noop, nil
	case "http":
		l := metadata.NewHTTPLookup(cfg.URL,
			metadata.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			metadata.WithRateLimit(cfg.RateLimit, cfg.Burst),
		)
		return metadata.NewCached(l), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown metadata source %q", cfg.Source)
}

// serveMetrics starts the Prometheus endpoint when configured and returns the
// collector and a shutdown function.
func serveMetrics(cfg config.MetricsConfig, logger *dupfinder.Logger) (dupfinder.MetricsCollector, func()) {
	if cfg.Addr == "" {
		return dupfinder.NoopMetricsCollector{}, func() {}
	}
	reg := prometheus.NewRegistry()
	collector := prommetrics.NewCollector(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", cfg.Addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", cfg.Addr)

	return collector, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// env is everything a command needs.
type env struct {
	cfg      *config.Config
	logger   *dupfinder.Logger
	store    blobstore.BlobStore
	pipeline *dupfinder.Pipeline
	closers  []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, err
	}

	metric, err := distance.ParseMetric(cfg.Run.Metric)
	if err != nil {
		return nil, err
	}
	compression, err := results.ParseCompression(cfg.Run.Compression)
	if err != nil {
		return nil, err
	}

	mc, stopMetrics := serveMetrics(cfg.Metrics, logger)
	p, err := dupfinder.Open(store,
		dupfinder.WithPrecision(cfg.Run.Precision),
		dupfinder.WithMetric(metric),
		dupfinder.WithWorkers(cfg.Run.Workers),
		dupfinder.WithChunkSize(cfg.Run.ChunkSize),
		dupfinder.WithBatchSize(cfg.Run.BatchSize),
		dupfinder.WithCompression(compression),
		dupfinder.WithRunDir(cfg.Run.Dir),
		dupfinder.WithThreshold(cfg.Shortlist.Threshold),
		dupfinder.WithLookupConcurrency(cfg.Shortlist.LookupConcurrency),
		dupfinder.WithLogger(logger),
		dupfinder.WithMetricsCollector(mc),
	)
	if err != nil {
		stopMetrics()
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, store: store, pipeline: p, closers: []func(){stopMetrics}}, nil
}
