// Command flashlog is a small ops tool around the logging engine: it can
// run a demo workload with a live metrics endpoint, dump the persisted log
// and clear it.
package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"flashlog/config"
	"flashlog/log"
	"flashlog/metrics"
)

var (
	logPath    string
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:          "flashlog",
		Short:        "Bounded, rotating on-device log engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logPath, "log", log.DefaultLogPath, "path of the append log")
	root.PersistentFlags().StringVar(&configPath, "config", "logs/flashlog.yaml", "path of the persisted config")

	root.AddCommand(newRunCmd(), newDumpCmd(), newClearCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newEngine() *log.Engine {
	return log.New(log.Cfg{
		LogPath: logPath,
		Store:   config.NewFileStore(configPath),
	})
}

func newRunCmd() *cobra.Command {
	var (
		burst       int
		producers   int
		metricsAddr string
		duration    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo workload and expose engine metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := newEngine()
			if err := eng.Begin(); err != nil {
				return err
			}
			defer eng.End()

			store := config.NewFileStore(configPath)
			watcher, err := config.NewWatcher(store, eng.ApplyConfig)
			if err != nil {
				return err
			}
			defer watcher.Close()

			collector := metrics.NewCollector(eng)
			srv, addr, err := metrics.Serve(metricsAddr, collector)
			if err != nil {
				return err
			}
			defer srv.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "metrics on http://%s/metrics\n", addr)

			var wg sync.WaitGroup
			for p := 0; p < producers; p++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for i := 0; i < burst; i++ {
						eng.Verbose("producer %d tick %d", id, i)
						eng.Debug("producer %d tick %d", id, i)
						eng.Info("producer %d tick %d", id, i)
						eng.Warning("producer %d tick %d", id, i)
						eng.Error("producer %d tick %d", id, i)
					}
				}(p)
			}
			wg.Wait()

			if duration > 0 {
				time.Sleep(duration)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"total=%d dropped=%d lines=%d rotations=%d queue(free=%d waiting=%d)\n",
				eng.TotalCount(), eng.DroppedCount(), eng.LogLines(), eng.Rotations(),
				eng.QueueSpacesAvailable(), eng.QueueMessagesWaiting())
			return nil
		},
	}

	cmd.Flags().IntVar(&burst, "burst", 100, "log calls per producer per severity")
	cmd.Flags().IntVar(&producers, "producers", 4, "concurrent producer goroutines")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":0", "listen address for the metrics endpoint")
	cmd.Flags().DurationVar(&duration, "linger", 0, "time to keep serving metrics after the burst")

	return cmd
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Stream the persisted log to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := newEngine()
			if err := eng.Begin(); err != nil {
				return err
			}
			defer eng.End()
			return eng.Dump(cmd.OutOrStdout())
		},
	}
}

func newClearCmd() *cobra.Command {
	var keepPercent int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the persisted log, optionally keeping the latest lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := newEngine()
			if err := eng.Begin(); err != nil {
				return err
			}
			defer eng.End()

			if keepPercent > 0 {
				return eng.ClearLogKeepLatestPercent(keepPercent)
			}
			return eng.ClearLog()
		},
	}

	cmd.Flags().IntVar(&keepPercent, "keep-percent", 0, "keep the latest N percent instead of clearing everything")

	return cmd
}
