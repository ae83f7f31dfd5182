package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"burstq/internal/banner"
	"burstq/internal/cli"
	"burstq/internal/config"
	"burstq/internal/logging"
	"burstq/internal/runner"
	"burstq/internal/storage"
	"burstq/internal/tui/live"
	"burstq/internal/tui/result"
)

var (
	cfgFile string
	initErr error

	// CLI Flags
	url         string
	requests    int
	concurrency int
	useTUI      bool
	noArchive   bool
)

var rootCmd = &cobra.Command{
	Use:   "burstq",
	Short: "burstq - HTTP GET burst load tester",
	Long: `
burstq fires a fixed number of GET requests at one URL through a bounded
worker pool and reports latency and success statistics.

Modes:
1. Headless (default): progress line and summary on stdout
2. TUI (--tui): live terminal view of the run
3. Server (burstq serve): HTTP API to start and watch runs`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		runCfg := c.Defaults.RunConfig(url, requests, concurrency)
		if useTUI {
			return runTUI(c, runCfg)
		}
		return runHeadless(cmd.Context(), c, log, runCfg)
	},
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd, dummyCmd, historyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.burstq.yaml)")

	rootCmd.Flags().StringVarP(&url, "url", "u", "", "Target URL (default from defaults.url)")
	rootCmd.Flags().IntVarP(&requests, "requests", "n", 0, "Total number of requests")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Maximum requests in flight")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "Follow the run in the terminal UI")
	rootCmd.Flags().BoolVar(&noArchive, "no-archive", false, "Do not write the result to the archive or log dir")
}

func initConfig() {
	home, _ := os.UserHomeDir()
	initErr = config.Init(viper.GetViper(), cfgFile, home)
}

// setup loads the config and builds the process logger.
func setup() (config.Config, *zap.Logger, error) {
	if initErr != nil {
		return config.Config{}, nil, initErr
	}
	c, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return c, log, nil
}

// archivers opens the configured archives. A bolt file that cannot be opened
// is logged and skipped so a run still produces its JSON log.
func archivers(c config.Config, log *zap.Logger) ([]runner.Archiver, func()) {
	out := []runner.Archiver{storage.NewFileLog(c.Storage.LogDir)}
	store, err := storage.OpenBolt(c.Storage.DB)
	if err != nil {
		log.Warn("run archive unavailable", zap.String("path", c.Storage.DB), zap.Error(err))
		return out, func() {}
	}
	out = append(out, store)
	return out, func() { store.Close() }
}

func runHeadless(ctx context.Context, c config.Config, log *zap.Logger, cfg runner.Config) error {
	opts := runner.Options{
		Observers: []runner.Observer{logging.NewRunObserver(log)},
		Logger:    log,
	}
	if !noArchive {
		arch, closeArch := archivers(c, log)
		defer closeArch()
		opts.Archivers = arch
	}

	ctrl := runner.NewController(opts)
	_, err := cli.Start(ctx, os.Stdout, ctrl, cfg)
	return err
}

func runTUI(c config.Config, cfg runner.Config) error {
	// Logs would tear the alt screen.
	log := zap.NewNop()
	opts := runner.Options{Logger: log}
	if !noArchive {
		arch, closeArch := archivers(c, log)
		defer closeArch()
		opts.Archivers = arch
	}

	ctrl := runner.NewController(opts)
	if _, err := ctrl.Start(cfg); err != nil {
		return err
	}

	p := tea.NewProgram(live.NewModel(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	// The run outlives a detached TUI; wait for it so the archive is written.
	if err := ctrl.Wait(context.Background()); err != nil {
		return err
	}
	if st := ctrl.Status(); st.Results != nil {
		fmt.Println(result.Render(*st.Results))
	}
	return nil
}
