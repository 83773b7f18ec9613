package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/board"
	"github.com/BuzzLyutic/kanban-board/internal/client"
	"github.com/BuzzLyutic/kanban-board/internal/config"
	"github.com/BuzzLyutic/kanban-board/internal/render"
	"github.com/BuzzLyutic/kanban-board/internal/worker"
)

var Version = "dev"

// app is the state shared by every subcommand for one invocation.
type app struct {
	configPath string
	apiURL     string
	verbose    bool
	width      int

	out    io.Writer
	logger *zap.Logger
	pool   *worker.Pool
	board  *board.Board
	render *render.Renderer
}

func main() {
	a := &app{out: os.Stdout}
	err := a.rootCmd().Execute()
	a.shutdown()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "board",
		Short:         "Kanban board for the task store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("TASKBOARD_CONFIG"), "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "task store base URL (overrides TASKS_API_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().IntVar(&a.width, "width", 0, "column width in characters")

	root.AddCommand(a.showCmd())
	root.AddCommand(a.addCmd())
	root.AddCommand(a.editCmd())
	root.AddCommand(a.deleteCmd())
	root.AddCommand(a.moveCmd())

	return root
}

func (a *app) setup(ctx context.Context) error {
	logger, err := newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.TasksAPIURL = a.apiURL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	api := client.New(cfg.TasksAPIURL, cfg.RequestTimeout, a.logger)
	a.pool = worker.NewPool(a.logger, cfg.WorkerCount)
	a.pool.Start(ctx)
	a.board = board.New(board.NewStore(), api, a.pool, a.logger)
	a.render = render.New(a.width)
	return nil
}

// settle waits for background syncs and refetches to finish.
func (a *app) settle() {
	if a.pool != nil {
		a.pool.Stop()
	}
}

func (a *app) shutdown() {
	a.settle()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) print() {
	fmt.Fprintln(a.out, a.render.Board(a.board.Views()))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
