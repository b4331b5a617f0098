package cli

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeusync/enginekit/internal/config"
	"github.com/zeusync/enginekit/internal/core/document"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/injector"
	"github.com/zeusync/enginekit/pkg/concurrent"
	"github.com/zeusync/enginekit/pkg/sequence"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config    string
	Overrides []string
	Inspector bool
	For       time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine",
		Long: `Load the config, create the entities it lists and tick the engine
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "config file (json, yaml or msgpack)")
	cmd.Flags().StringArrayVar(&opts.Overrides, "override", nil, "file deep-merged over the config (repeatable)")
	cmd.Flags().BoolVar(&opts.Inspector, "inspector", false, "start the inspector regardless of the config")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func loadConfig(path string, overrides []string) (*config.Config, error) {
	if path == "" && len(overrides) == 0 {
		return config.Default(), nil
	}
	return config.Load(path, overrides...)
}

func runEngine(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts.Config, opts.Overrides)
	if err != nil {
		return err
	}
	if opts.Verbose {
		cfg.LogLevel = log.LevelDebug.String()
	}
	if opts.Inspector {
		cfg.Inspector.Enabled = true
	}

	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	created := loadEntities(app.Engine, cfg.EntityFiles(), app.Logger)
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d entities\n", created)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.For > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.For)
		defer cancel()
	}

	if cfg.Inspector.Enabled {
		if err = app.Inspector.Start(ctx); err != nil {
			_ = app.Close(context.Background())
			return fmt.Errorf("start inspector: %w", err)
		}
	}

	runErr := app.Engine.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = app.Close(shutdownCtx); err != nil {
		app.Logger.Warn("shutdown finished with errors", log.Error(err))
	}
	return runErr
}

type loadedFile struct {
	path string
	node *document.Node
	err  error
}

// loadEntities parses descriptor files in parallel and creates their
// entities in order. A file may hold one descriptor or a list of them.
// Broken files and entities are logged and skipped.
func loadEntities(e *engine.Engine, files []string, logger log.Log) int {
	loaded := concurrent.ParallelMap(sequence.From(files), runtime.NumCPU(), func(path string) loadedFile {
		n, err := document.Load(path)
		return loadedFile{path: path, node: n, err: err}
	})

	created := 0
	for _, f := range loaded {
		if f.err != nil {
			logger.Error("entity file not loaded", log.String("file", f.path), log.Error(f.err))
			continue
		}
		descs := []*document.Node{f.node}
		if f.node.IsArray() {
			descs = descs[:0]
			for _, d := range f.node.Items() {
				descs = append(descs, d)
			}
		}
		for _, desc := range descs {
			entity, err := e.CreateEntity(desc)
			if err != nil {
				logger.Warn("entity loaded with errors", log.String("file", f.path), log.Error(err))
			}
			if entity != nil {
				created++
			}
		}
	}
	return created
}
