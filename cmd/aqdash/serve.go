package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cli/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/collector"
	"github.com/luki/aqdash/internal/history"
	"github.com/luki/aqdash/internal/logging"
	"github.com/luki/aqdash/internal/publish"
	"github.com/luki/aqdash/internal/remotewrite"
	"github.com/luki/aqdash/internal/store"
	"github.com/luki/aqdash/internal/web"
)

func newServeCommand() *cobra.Command {
	var (
		listen string
		open   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live browser dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Dashboard.Listen = listen
			}

			log, err := logging.New(cfg.ESDK.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			src := newSource(cfg.Source)
			defer src.Close()

			groups := chart.DefaultGroups()
			hub := web.NewHub(log.Named("hub"))
			adapter := chart.NewAdapter(hub, groups...)
			col := collector.New(src, adapter, history.NewStore(cfg.Dashboard.HistorySize), collector.Options{
				Window:         cfg.Dashboard.Window.Duration,
				UpdateInterval: cfg.Dashboard.UpdateInterval.Duration,
			}, log.Named("collector"))

			if cfg.CSV.Enabled {
				ds, err := store.New(cfg.CSV.Dir)
				if err != nil {
					return err
				}
				defer ds.Close()
				col.AddSink("csv", cfg.CSV.Interval.Duration, ds.Write)
				log.Info("logging to CSV", zap.String("dir", ds.Dir()))
			}
			if cfg.MQTT.Enabled {
				pub, err := publish.Connect(cfg.MQTT, log.Named("mqtt"))
				if err != nil {
					return fmt.Errorf("mqtt: %w", err)
				}
				defer pub.Close()
				col.AddSink("mqtt", cfg.MQTT.Interval.Duration, pub.Publish)
			}
			for name, rw := range cfg.Prometheus {
				w := remotewrite.New(name, rw, cfg.ESDK.FriendlyName, log.Named("remotewrite"))
				col.AddSink("prometheus/"+name, w.Interval(), w.Write)
				log.Info("remote write enabled", zap.String("endpoint", name), zap.Duration("interval", w.Interval()))
			}

			srv := web.NewServer(hub, groups, col, log.Named("web"))

			var wg sync.WaitGroup
			errc := make(chan error, 2)
			wg.Add(2)
			go func() {
				defer wg.Done()
				errc <- col.Run(ctx)
			}()
			go func() {
				defer wg.Done()
				errc <- srv.ListenAndServe(ctx, cfg.Dashboard.Listen)
			}()

			if open {
				url := dashboardURL(cfg.Dashboard.Listen)
				time.AfterFunc(500*time.Millisecond, func() {
					if err := browser.OpenURL(url); err != nil {
						log.Warn("cannot open browser", zap.String("url", url), zap.Error(err))
					}
				})
			}

			// the first failure stops everything
			err = <-errc
			cancel()
			wg.Wait()
			close(errc)
			for e := range errc {
				if err == nil {
					err = e
				}
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the dashboard in a browser")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Use simulated readings instead of the sensor board")
	return cmd
}

func dashboardURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
