package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/inquestlab/inquest/config"
	"github.com/inquestlab/inquest/internal/crew"
	"github.com/inquestlab/inquest/internal/docs"
	"github.com/inquestlab/inquest/internal/factcheck"
	"github.com/inquestlab/inquest/internal/index"
	"github.com/inquestlab/inquest/internal/merge"
	"github.com/inquestlab/inquest/internal/people"
	srv "github.com/inquestlab/inquest/internal/server"
	"github.com/inquestlab/inquest/internal/store"
	"github.com/inquestlab/inquest/internal/telemetry"
	"github.com/inquestlab/inquest/provider"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = cfg.Server.Address
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
			}

			ctx := context.Background()

			llm, err := provider.New(cfg.LLM.Backend, provider.Options{
				APIKey:         cfg.LLM.APIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Model:          cfg.LLM.Model,
				EmbeddingModel: cfg.LLM.EmbeddingModel,
				Timeout:        cfg.LLM.Timeout,
				Retries:        cfg.LLM.Retries,
				Backoff:        cfg.LLM.Backoff,
			})
			if err != nil {
				return err
			}

			searcher := docs.NewClient(cfg.Search.BaseURL, cfg.Search.Timeout, cfg.Search.Retries, cfg.Search.Backoff)

			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr,
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			var cache docs.Cache
			if err := rdb.Ping(ctx).Err(); err != nil {
				fmt.Printf("redis unavailable (%s), falling back to in-memory text cache: %v\n", cfg.Storage.Redis.Addr, err)
				cache = docs.NewMemoryCache()
			} else {
				cache = docs.NewRedisCache(rdb, cfg.Storage.Redis.TextTTL)
			}
			fetcher := docs.NewFetcher(cfg.Search.Timeout, cache)

			dsn := store.DSN(
				cfg.Storage.Postgres.URL,
				cfg.Storage.Postgres.Host,
				strconv.Itoa(cfg.Storage.Postgres.Port),
				cfg.Storage.Postgres.User,
				cfg.Storage.Postgres.Password,
				cfg.Storage.Postgres.DBName,
				cfg.Storage.Postgres.SSLMode,
			)
			st, err := store.New(ctx, dsn)
			if err != nil {
				return err
			}

			idx, err := index.New(llm)
			if err != nil {
				return err
			}
			registry := people.NewRegistry(st)
			tel := telemetry.New(prometheus.DefaultRegisterer)

			runner := crew.New(llm, searcher, fetcher, idx, registry, tel, crew.Config{
				MaxTerms:          cfg.Crew.MaxTerms,
				PagesPerTerm:      cfg.Crew.PagesPerTerm,
				TermDelay:         cfg.Crew.TermDelay,
				PeopleTerms:       cfg.Crew.PeopleTerms,
				SemanticTerms:     cfg.Crew.SemanticTerms,
				SemanticResults:   cfg.Crew.SemanticResults,
				FullTextCap:       cfg.Crew.FullTextCap,
				BatchSize:         cfg.Crew.BatchSize,
				BatchWorkers:      cfg.Crew.BatchWorkers,
				BatchTimeout:      cfg.Crew.BatchTimeout,
				SpecialistWorkers: cfg.Crew.SpecialistWorkers,
				SpecialistDocs:    cfg.Crew.SpecialistDocs,
			})
			engine := merge.NewEngine(llm, searcher, fetcher, idx)
			checker := factcheck.New(idx, searcher)

			server := srv.New(st, runner, engine, checker, []byte(cfg.Server.JWTSecret))
			return server.Run(serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
