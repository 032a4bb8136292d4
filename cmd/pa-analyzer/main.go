package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/config"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/history"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/cli"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/internal/engine"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/separation"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store/jsonfile"
	"github.com/Shunpe0907/foh-audio-analysis-with-ai-v1/store/sqlite"
)

var version = "0.1.0"

// Globals are shared by every command.
type Globals struct {
	Config   string `short:"c" type:"path" help:"Path to config.yaml (optional)"`
	DataDir  string `help:"Directory for analysis history (overrides data_dir)"`
	Backend  string `help:"Storage backend: json or sqlite (overrides backend)"`
	LogLevel string `help:"Log level: debug, info, warn, error (overrides log_level)"`
}

type CLI struct {
	Globals

	Analyze AnalyzeCmd `cmd:"" help:"Analyze a recorded mix and update your history"`
	History HistoryCmd `cmd:"" help:"List your past analyses, newest first"`
	Profile ProfileCmd `cmd:"" help:"Show your aggregate profile"`
	Mixers  MixersCmd  `cmd:"" help:"Show per-mixer statistics"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

type AnalyzeCmd struct {
	File     string `arg:"" type:"existingfile" help:"WAV or MP3 recording"`
	User     string `short:"u" required:"" help:"User identifier (e-mail address)"`
	Name     string `short:"n" help:"Analysis name"`
	Venue    string `help:"Venue name"`
	Mixer    string `help:"Mixing console model"`
	Separate bool   `help:"Separate instrument stems and analyze each one"`
	JSON     bool   `help:"Print the report as JSON"`
}

type HistoryCmd struct {
	User string `short:"u" required:"" help:"User identifier"`
	JSON bool   `help:"Print records as JSON"`
}

type ProfileCmd struct {
	User string `short:"u" required:"" help:"User identifier"`
	JSON bool   `help:"Print the profile as JSON"`
}

type MixersCmd struct {
	JSON bool `help:"Print mixer statistics as JSON"`
}

type VersionCmd struct{}

// app is the runtime built from Globals for commands that need state.
type app struct {
	cfg    *config.Config
	engine *engine.Engine
	close  func() error
}

func (g *Globals) open(ctx context.Context, withSeparation bool) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.DataDir != "" {
		cfg.DataDir = g.DataDir
	}
	if g.Backend != "" {
		cfg.Backend = g.Backend
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	log.SetLevel(level)

	records, aggregates, closeFn, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	sep := separation.Separator(separation.Unavailable{})
	if withSeparation {
		sep = separation.Detect(cfg.SeparationOptions())
		log.WithFields(logrus.Fields{
			"available": sep.Available(),
			"binary":    cfg.Separation.Binary,
		}).Debug("Separation capability detected")
	}

	eng, err := engine.New(ctx, engine.Options{
		Settings:          cfg.HistorySettings(),
		Records:           records,
		Aggregates:        aggregates,
		Separator:         sep,
		SeparationTimeout: cfg.Separation.Timeout,
		Logger:            log,
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"backend":  cfg.Backend,
		"data_dir": cfg.DataDir,
	}).Debug("Engine ready")
	return &app{cfg: cfg, engine: eng, close: closeFn}, nil
}

func openStores(cfg *config.Config) (store.RecordStore, store.AggregateStore, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.DatabasePath())
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		s, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() error { return nil }, nil
	}
}

func (c *AnalyzeCmd) Run(g *Globals, ctx context.Context, out io.Writer) error {
	a, err := g.open(ctx, c.Separate)
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.engine.Analyze(ctx, engine.Request{
		UserID: c.User,
		Path:   c.File,
		Metadata: history.Metadata{
			Name:  c.Name,
			Venue: c.Venue,
			Mixer: c.Mixer,
		},
		Separate: c.Separate,
	})
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.WriteJSON(out, rep)
	}
	cli.RenderReport(out, rep)
	return nil
}

func (c *HistoryCmd) Run(g *Globals, ctx context.Context, out io.Writer) error {
	a, err := g.open(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	recs, err := a.engine.History(ctx, c.User)
	if err != nil {
		return err
	}
	if c.JSON {
		return cli.WriteJSON(out, recs)
	}
	cli.RenderHistory(out, c.User, recs)
	return nil
}

func (c *ProfileCmd) Run(g *Globals, ctx context.Context, out io.Writer) error {
	a, err := g.open(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	p, ok := a.engine.Profile(c.User)
	if !ok {
		return fmt.Errorf("no analyses recorded for %q", c.User)
	}
	if c.JSON {
		return cli.WriteJSON(out, p)
	}
	cli.RenderProfile(out, c.User, p, a.cfg.Insights.Window)
	return nil
}

func (c *MixersCmd) Run(g *Globals, ctx context.Context, out io.Writer) error {
	a, err := g.open(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	mixers := a.engine.Mixers()
	if c.JSON {
		return cli.WriteJSON(out, mixers)
	}
	cli.RenderMixers(out, mixers)
	return nil
}

func (c *VersionCmd) Run(out io.Writer) error {
	cli.PrintVersion(out, version)
	return nil
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	var c CLI
	parser, err := kong.New(&c,
		kong.Name("pa-analyzer"),
		kong.Description("Live sound (PA) mix analyzer with per-user history"),
		kong.UsageOnError(),
		kong.Writers(stdout, os.Stderr),
		kong.Bind(&c.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.BindTo(stdout, (*io.Writer)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		cli.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}
