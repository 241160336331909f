package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/config"
	"github.com/kjstillabower/weather-record-service/internal/handler"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/store"
)

// app holds what every subcommand needs. weather is built lazily from config
// unless a test sets it first.
type app struct {
	configDir string
	weather   *handler.Handler
	store     store.Store
	logger    *zap.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "weatherctl",
		Short: "weatherctl - run weather record requests from the command line",
		Long: `weatherctl sends request descriptors through the same handler the HTTP
server and the Lambda function use, against the configured store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", ".", "directory holding .env and config/")

	root.AddCommand(newInvokeCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newCreateCmd(a))
	root.AddCommand(newDeleteCmd(a))
	return root
}

func (a *app) open() error {
	if a.weather != nil {
		return nil
	}
	dir, err := filepath.Abs(a.configDir)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger()
	if err != nil {
		return err
	}
	a.logger = logger
	s, err := store.Open(cfg.StoreOptions(), logger)
	if err != nil {
		return err
	}
	a.store = s
	a.weather = handler.New(s, logger)
	return nil
}

// close releases the store and flushes the logger. It runs after every command,
// including ones whose RunE failed, since cobra skips post-run hooks on error.
func (a *app) close(ctx context.Context) error {
	var err error
	if a.store != nil {
		err = a.store.Close(ctx)
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func execute(ctx context.Context, a *app, args []string, in io.Reader, out, errOut io.Writer) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	runErr := root.ExecuteContext(ctx)
	return errors.Join(runErr, a.close(ctx))
}

func main() {
	if err := execute(context.Background(), &app{}, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
