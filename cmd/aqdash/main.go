// Command aqdash is the air-quality dashboard: a websocket chart server,
// a live terminal monitor, a history browser and a report tool over the
// sensor board's CSV logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/chart"
	"github.com/luki/aqdash/internal/config"
	"github.com/luki/aqdash/internal/logging"
	"github.com/luki/aqdash/internal/monitor"
	"github.com/luki/aqdash/internal/report"
	"github.com/luki/aqdash/internal/sensor"
	"github.com/luki/aqdash/internal/store"
	"github.com/luki/aqdash/internal/viewer"
)

var (
	configPath string
	debug      bool
	simulate   bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "aqdash",
		Short:        "Air quality sensor dashboard",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the TOML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newServeCommand(),
		newMonitorCommand(),
		newViewCommand(),
		newReportCommand(),
		newGroupsCommand(),
	)
	return root
}

// loadConfig reads the config file and applies the global flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("debug") {
		cfg.ESDK.Debug = debug
	}
	if f := cmd.Flags().Lookup("simulate"); f != nil && f.Changed {
		cfg.Source.Simulate = simulate
	}
	return cfg, nil
}

func newSource(cfg config.Source) sensor.Source {
	if cfg.Simulate {
		return sensor.NewSimSource(cfg.Interval.Duration, time.Now().UnixNano())
	}
	return sensor.NewWSSource(cfg.URL)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newMonitorCommand() *cobra.Command {
	logFile := filepath.Join(os.TempDir(), "aqdash-monitor.log")
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live terminal charts of the sensor readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := logging.ToFile(logFile, cfg.ESDK.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signalContext()
			defer cancel()

			src := newSource(cfg.Source)
			defer src.Close()

			opts := monitor.Options{
				Window:         cfg.Dashboard.Window.Duration,
				UpdateInterval: cfg.Dashboard.UpdateInterval.Duration,
				HistorySize:    cfg.Dashboard.HistorySize,
				Log:            log.Named("monitor"),
			}
			if cfg.CSV.Enabled {
				ds, err := store.New(cfg.CSV.Dir)
				if err != nil {
					return err
				}
				defer ds.Close()
				opts.Store = ds
				opts.CSVInterval = cfg.CSV.Interval.Duration
				log.Info("logging to CSV", zap.String("dir", ds.Dir()), zap.Duration("interval", opts.CSVInterval))
			}

			p := tea.NewProgram(monitor.New(ctx, src, opts), tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && ctx.Err() == nil {
				return fmt.Errorf("monitor: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Use simulated readings instead of the sensor board")
	cmd.Flags().StringVar(&logFile, "log-file", logFile, "Write the monitor's log to this file")
	return cmd
}

func newViewCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse logged history in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.CSV.Dir
			}
			return viewer.Run(dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "CSV log directory (default from config)")
	return cmd
}

func newReportCommand() *cobra.Command {
	var (
		dir  string
		xlsx string
	)
	cmd := &cobra.Command{
		Use:   "report [YYYY-MM-DD]",
		Short: "Summarise one logged day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dir = cfg.CSV.Dir
			}

			var day string
			if len(args) == 1 {
				day = args[0]
			} else {
				days, err := store.ListDays(dir)
				if err != nil {
					return err
				}
				if len(days) == 0 {
					return fmt.Errorf("no logs in %s", dir)
				}
				day = days[0]
			}

			records, err := store.LoadDay(dir, day)
			if err != nil {
				return err
			}
			s := report.Summarize(day, records)
			report.Print(cmd.OutOrStdout(), s)

			if xlsx != "" {
				if err := report.WriteXLSX(xlsx, s, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %s\n", xlsx)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "CSV log directory (default from config)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the report to this .xlsx file")
	return cmd
}

func newGroupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the chart groups and their series",
		Run: func(cmd *cobra.Command, args []string) {
			report.PrintGroups(cmd.OutOrStdout(), chart.DefaultGroups())
		},
	}
}
