package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"report-composer-go/config"
	"report-composer-go/db"
	"report-composer-go/export"
	"report-composer-go/handlers"
	"report-composer-go/models"
	"report-composer-go/render"
	"report-composer-go/report"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report workspace HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if addrFlag != "" {
			cfg.Server.Addr = addrFlag
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
}

func serve(ctx context.Context, cfg config.Config) error {
	state, closeState, err := openState(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeState()

	if _, err := state.EnsureRoster(ctx); err != nil {
		logger.Warn("roster seed failed", zap.Error(err))
	}

	ws := report.NewWorkspace(state.LoadState(ctx, time.Now()), state, logger)

	surface, err := render.NewRodSurface(ctx, render.BrowserOptions{
		Bin:         cfg.Browser.Bin,
		ControlURL:  cfg.Browser.ControlURL,
		Headless:    cfg.Browser.Headless,
		Width:       cfg.Browser.Width,
		Height:      cfg.Browser.Height,
		PixelRatio:  cfg.Export.PixelRatio,
		JPEGQuality: cfg.Export.JPEGQuality,
	}, logger)
	if err != nil {
		return fmt.Errorf("start render surface: %w", err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			logger.Warn("error closing render surface", zap.Error(err))
		}
	}()

	exporter := export.NewExporter(ws, surface, cfg.Export.SettleDelay, logger)
	apiHandler := handlers.NewAPIHandler(ws, exporter, state, logger)

	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger))
	apiHandler.Register(router)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ws.RunDateTicker(gctx, cfg.Server.DateRefresh)
	})
	if cfg.Roster.WatchFile != "" {
		watcher := db.NewRosterWatcher(cfg.Roster.WatchFile, state, func(r models.Roster) {
			logger.Info("roster reloaded from workbook", zap.Int("students", len(r.Refs())))
		}, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}
