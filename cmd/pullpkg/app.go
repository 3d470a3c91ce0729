// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/pullpkg/pullpkg/internal/config"
	"github.com/pullpkg/pullpkg/internal/pullfile"
	"github.com/pullpkg/pullpkg/pkg/loadctx"
	"github.com/pullpkg/pullpkg/pkg/puller"
)

// defaultIssueStyle renders issue help before any configuration is loaded.
const defaultIssueStyle = "dark"

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and
	// builds pullers through it.
	App struct {
		Config ConfigProvider
		// Engine replaces the configured restore command when set.
		Engine         puller.Engine
		TracerProvider trace.TracerProvider
		stdout         io.Writer
		stderr         io.Writer
		issueStyle     string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config         ConfigProvider
		Engine         puller.Engine
		TracerProvider trace.TracerProvider
		Stdout         io.Writer
		Stderr         io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
		Path(opts config.LoadOptions) (string, error)
	}

	// session is the per-invocation state shared by command handlers.
	session struct {
		cfg     *config.Config
		logger  *log.Logger
		verbose bool
	}

	// rootFlagValues holds the persistent flags of the root command.
	rootFlagValues struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config:         deps.Config,
		Engine:         deps.Engine,
		TracerProvider: deps.TracerProvider,
		stdout:         deps.Stdout,
		stderr:         deps.Stderr,
		issueStyle:     defaultIssueStyle,
	}, nil
}

func (f *rootFlagValues) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: f.configPath}
}

// newSession loads configuration and builds the logger for one command.
// The --verbose flag and ui.verbose both enable debug logging.
func (a *App) newSession(ctx context.Context, flags *rootFlagValues) (*session, error) {
	cfg, err := a.Config.Load(ctx, flags.loadOptions())
	if err != nil {
		return nil, err
	}
	a.issueStyle = cfg.UI.ColorScheme.GlamourStyle()

	verbose := flags.verbose || cfg.UI.Verbose
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
	return &session{cfg: cfg, logger: logger, verbose: verbose}, nil
}

// pullerOptions returns the options every puller of s is built with.
func (a *App) pullerOptions(s *session) []puller.Option {
	engine := a.Engine
	if engine == nil {
		e := puller.NewExecEngine(s.cfg.Engine.Command)
		e.Logger = s.logger
		if s.verbose {
			e.Output = a.stderr
		}
		engine = e
	}

	opts := []puller.Option{puller.WithEngine(engine), puller.WithLogger(s.logger)}
	if len(s.cfg.Fallback.Paths) > 0 {
		opts = append(opts, puller.WithFallback(loadctx.DirLookup{Dirs: s.cfg.Fallback.Paths}))
	}
	if a.TracerProvider != nil {
		opts = append(opts, puller.WithTracerProvider(a.TracerProvider))
	}
	return opts
}

// openPullfile parses the pull file at path, or discovers one in the
// working directory when path is empty.
func openPullfile(path string) (*pullfile.File, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = pullfile.Discover(wd); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return pullfile.Parse(abs)
}

// newPuller builds a puller for the declaration in f. dir, when set,
// replaces the pull directory.
func (a *App) newPuller(s *session, f *pullfile.File, dir string) (*puller.Puller, error) {
	configure := f.Configure(pullfile.ConfigureOptions{
		Framework: s.cfg.DefaultFramework,
		Directory: dir,
	})
	return puller.Build(configure, a.pullerOptions(s)...)
}

// pull runs p.Pull bounded by the configured engine timeout.
func (a *App) pull(ctx context.Context, s *session, p *puller.Puller) (puller.RestoreSummary, error) {
	if timeout := s.cfg.Engine.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Pull(ctx)
}
