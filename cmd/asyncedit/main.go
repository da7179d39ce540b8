package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dm-vev/asyncedit"
	"github.com/pelletier/go-toml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath  string
		debug       bool
		metricsAddr string
	)
	root := &cobra.Command{
		Use:          "asyncedit",
		Short:        "Run edit scripts against a world through the async edit queue",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "path to the TOML configuration, created with defaults if missing")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	run := &cobra.Command{
		Use:   "run <script>",
		Short: "Run an edit script, one goroutine per actor",
		Long: "Each line of a script has the form '<actor> <command> [args...]'. " +
			"Lines of the same actor run in order, different actors run concurrently.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(debug)
			conf, err := readConfig(configPath, log)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				conf.Registerer = reg
				srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("serve metrics", "err", err)
					}
				}()
				defer srv.Close()
			}
			engine := conf.New()
			defer engine.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open script: %w", err)
			}
			defer f.Close()
			script, err := parseScript(f)
			if err != nil {
				return err
			}
			return (&runner{engine: engine, out: cmd.OutOrStdout()}).run(cmd.Context(), script)
		},
	}
	run.Flags().StringVar(&metricsAddr, "metrics", "", "address to serve prometheus metrics on while running, for example :9100")

	config := &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := toml.Marshal(asyncedit.DefaultConfig())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	root.AddCommand(run, config)
	return root
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// readConfig reads the configuration from the path passed. If the file does
// not exist, the default configuration is written to it first.
func readConfig(path string, log *slog.Logger) (asyncedit.Config, error) {
	c := asyncedit.DefaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		data, err := toml.Marshal(c)
		if err != nil {
			return asyncedit.Config{}, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return asyncedit.Config{}, fmt.Errorf("create default config: %w", err)
		}
		return c.Config(log)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return asyncedit.Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return asyncedit.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c.Config(log)
}
