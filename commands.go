package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/captionsync/backend/internal/api"
	"github.com/captionsync/backend/internal/caption/segment"
	"github.com/captionsync/backend/internal/config"
	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/events"
	"github.com/captionsync/backend/internal/i18n"
	"github.com/captionsync/backend/internal/job"
	"github.com/captionsync/backend/internal/session"
	"github.com/captionsync/backend/internal/translate"
)

// cacheMaxAge is how long cached translations are kept.
const cacheMaxAge = 30 * 24 * time.Hour

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "captionsync %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// app holds the components shared by serve and sync.
type app struct {
	cfg        *config.Config
	database   *db.Database
	translator *translate.Service
	publisher  events.Publisher
	catalog    *i18n.Catalog
	sessions   *session.Manager
}

func newApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &app{cfg: cfg, database: database, catalog: i18n.New(cfg.Lang)}
	a.translator = translate.NewService(cfg.TranslateProvider, database, database)
	a.translator.SetDefaultModel(cfg.TranslateProvider, cfg.TranslateModel)
	a.configureEngines()

	a.publisher = events.LogPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			log.Printf("[events] %v; falling back to the log", err)
		} else {
			a.publisher = p
		}
	}

	a.sessions = session.NewManager(database, a.translator.Func("", ""), a.publisher, a.catalog)
	a.sessions.ImageRoot = cfg.ImagePath
	return a, nil
}

// configureEngines (re)builds the translation engines from the config and
// the stored settings.
func (a *app) configureEngines() {
	keys := make(map[string]string, len(a.cfg.APIKeys))
	for name, k := range a.cfg.APIKeys {
		keys[name] = k
	}
	custom := make([]translate.Provider, 0, len(a.cfg.Providers))
	for _, p := range a.cfg.Providers {
		custom = append(custom, translate.Provider{
			Name:         p.Name,
			DisplayName:  p.DisplayName,
			BaseURL:      p.BaseURL,
			DefaultModel: p.Model,
			Models:       p.Models,
		})
		if p.APIKey != "" {
			keys[p.Name] = p.APIKey
		}
	}
	a.translator.Configure(keys, custom, a.database, a.cfg.TranslateProvider)
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		log.Printf("[events] close: %v", err)
	}
	a.database.Close()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			cfg := a.cfg

			if n, err := a.database.PurgeTranslationCache(cacheMaxAge); err != nil {
				log.Printf("[translate] cache purge failed: %v", err)
			} else if n > 0 {
				log.Printf("[translate] purged %d cached translations", n)
			}

			jobs := job.NewJobQueue(a.database.DB())
			jobs.RegisterHandler(job.JobTranslateCaptions, a.translator.HandleJob)
			defer jobs.Stop()

			router := api.NewRouter(cfg, api.Services{
				Database:        a.database,
				Translator:      a.translator,
				Sessions:        a.sessions,
				Jobs:            jobs,
				Catalog:         a.catalog,
				SettingsChanged: a.configureEngines,
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Starting server on %s", srv.Addr)
				log.Printf("Image path: %s", cfg.ImagePath)
				if cfg.File != "" {
					log.Printf("Config file: %s", cfg.File)
				}
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Println("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newSyncCmd() *cobra.Command {
	var text string
	var whole bool

	cmd := &cobra.Command{
		Use:   "sync <caption-id>",
		Short: "Replace a caption's translation and sync it back to the source",
		Long: `Replace the translation of a stored caption with --text and sync every
changed sentence into the source caption. Sentences are separated by "/".
With --whole the caption is translated again in one call instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && !whole {
				return errors.New("--text or --whole is required")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.sessions.Open(args[0])
			if err != nil {
				return fmt.Errorf("open caption %s: %w", args[0], err)
			}
			defer a.sessions.Close()

			if text != "" {
				if _, err := s.EditText(text); err != nil {
					return err
				}
			}

			var out session.Outcome
			if whole {
				out, err = s.SyncWhole(cmd.Context())
			} else {
				out, err = s.Sync(cmd.Context())
			}
			fmt.Println(out.Summary)
			if out.Warning != "" {
				fmt.Fprintln(os.Stderr, out.Warning)
			}
			if err != nil {
				return err
			}
			fmt.Println(out.State.SourceText)
			fmt.Println(out.State.TargetText)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "edited translation")
	cmd.Flags().BoolVar(&whole, "whole", false, "translate the whole caption again")
	return cmd
}

func newSegmentCmd() *cobra.Command {
	var side string

	cmd := &cobra.Command{
		Use:   "segment <text>",
		Short: "Split caption text into sentences",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s segment.Side
			switch side {
			case "source":
				s = segment.Source
			case "target":
				s = segment.Target
			default:
				return fmt.Errorf("unknown side %q (want source or target)", side)
			}
			for i, unit := range segment.Split(strings.Join(args, " "), s) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, unit)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&side, "side", "source", "source or target")
	return cmd
}
