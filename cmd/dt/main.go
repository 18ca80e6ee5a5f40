package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/dirtree/internal/datasource"
	"github.com/vanderheijden86/dirtree/pkg/config"
	"github.com/vanderheijden86/dirtree/pkg/debug"
	"github.com/vanderheijden86/dirtree/pkg/loader"
	"github.com/vanderheijden86/dirtree/pkg/metrics"
	"github.com/vanderheijden86/dirtree/pkg/model"
	"github.com/vanderheijden86/dirtree/pkg/tree"
	"github.com/vanderheijden86/dirtree/pkg/ui"
	"github.com/vanderheijden86/dirtree/pkg/version"
	"github.com/vanderheijden86/dirtree/pkg/watcher"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, stdoutIsTerminal))
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// options is the parsed command line.
type options struct {
	help         bool
	version      bool
	configPath   string
	dir          string
	source       string
	search       string
	searchSet    bool
	jsonOut      bool
	deleteID     int
	deleteSet    bool
	move         string
	validate     bool
	cascade      string
	all          bool
	noWatch      bool
	strict       bool
	showIDs      bool
	cpuProfile   string
	printMetrics bool
	debug        bool
	yes          bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("dt", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&o.help, "help", false, "Show help")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.StringVar(&o.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/dirtree/config.yaml)")
	fs.StringVar(&o.dir, "dir", "", "Tree directory holding tree.db or tree.jsonl (default ./.dirtree or $DT_TREE_DIR)")
	fs.StringVar(&o.source, "source", "", "Load this single file instead of discovering sources")
	fs.StringVar(&o.search, "search", "", "Filter the tree by title prefix")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the filtered tree as JSON")
	fs.IntVar(&o.deleteID, "delete", 0, "Delete an entity and its contents before printing")
	fs.StringVar(&o.move, "move", "", "Move an entity, as target:destination, before printing")
	fs.BoolVar(&o.yes, "yes", false, "Delete without asking for confirmation")
	fs.BoolVar(&o.validate, "validate", false, "Check the tree for structural problems and exit")
	fs.StringVar(&o.cascade, "cascade", "", "Delete cascade mode: live or seed")
	fs.BoolVar(&o.all, "all", false, "Expand every folder in plain output")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Disable live reload")
	fs.BoolVar(&o.strict, "strict", false, "Reject trees that fail validation")
	fs.BoolVar(&o.showIDs, "ids", false, "Prefix titles with their id")
	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.printMetrics, "metrics", false, "Print timing metrics as JSON to stderr on exit")
	fs.BoolVar(&o.debug, "debug", false, "Log diagnostics to stderr (same as DT_DEBUG=1)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "search":
			o.searchSet = true
		case "delete":
			o.deleteSet = true
		}
	})
	if o.help {
		fmt.Fprintln(stderr, "Usage: dt [options]")
		fmt.Fprintln(stderr, "\nBrowse, search, and reorganize a directory tree.")
		fs.PrintDefaults()
	}
	return o, nil
}

// interactive reports whether the TUI should start.
func (o options) interactive() bool {
	return !o.jsonOut && !o.deleteSet && o.move == "" && !o.validate && !o.printMetrics && !o.all
}

func run(args []string, stdout, stderr io.Writer, isTTY func() bool) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if o.help {
		return exitOK
	}
	if o.version {
		fmt.Fprintf(stdout, "dt %s\n", version.Version)
		return exitOK
	}

	if o.debug {
		debug.SetEnabled(true)
	}
	defer debug.LogEnterExit("dt")()

	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return exitFail
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return exitFail
		}
		defer pprof.StopCPUProfile()
	}
	if o.printMetrics {
		defer func() {
			if err := metrics.WriteJSON(stderr); err != nil {
				fmt.Fprintf(stderr, "Error writing metrics: %v\n", err)
			}
		}()
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	fetcher, watchPath, err := buildFetcher(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entities, err := fetcher.Fetch(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading tree: %v\n", err)
		return exitFail
	}

	if o.validate {
		return runValidate(entities, stdout, stderr)
	}

	eng := tree.New(entities, tree.WithCascade(tree.ParseCascadeMode(cfg.Tree.Cascade)))
	if code := applyEdits(eng, o, isTTY() && !o.yes, stderr); code != exitOK {
		return code
	}

	if o.searchSet {
		if n := utf8.RuneCountInString(o.search); n > cfg.UI.SearchLimit {
			fmt.Fprintf(stderr, "Error: Can't exceed %d characters\n", cfg.UI.SearchLimit)
			return exitUsage
		}
		if err := eng.Filter(o.search); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonView(eng)); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
		return exitOK
	}

	if !o.interactive() || !isTTY() {
		opts := ui.RenderOptions{ExpandAll: o.all, ShowIDs: cfg.UI.ShowIDs}
		if isTTY() {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				opts.Width = w
			}
		}
		if err := ui.Render(stdout, eng, opts); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
		return exitOK
	}

	var w *watcher.Watcher
	if cfg.WatchEnabled() && !o.noWatch {
		w = startWatcher(ctx, cfg, watchPath, stderr)
		if w != nil {
			defer w.Stop()
		}
	}

	m := ui.NewModel(eng, ui.Options{
		Fetcher:     fetcher,
		Watcher:     w,
		SearchLimit: cfg.UI.SearchLimit,
		ShowIDs:     cfg.UI.ShowIDs,
	})
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(stderr, "Error running dt: %v\n", err)
		return exitFail
	}
	return exitOK
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if o.dir != "" {
		cfg.Source.Dir = o.dir
		cfg.Source.Path = ""
	}
	if o.source != "" {
		cfg.Source.Path = o.source
	}
	if o.cascade != "" {
		cfg.Tree.Cascade = o.cascade
	}
	if o.strict {
		cfg.Tree.Strict = true
	}
	if o.showIDs {
		cfg.UI.ShowIDs = true
	}
	if cfg.UI.SearchLimit == 0 {
		cfg.UI.SearchLimit = config.DefaultSearchLimit
	}
	return cfg, cfg.Validate()
}

// buildFetcher picks the source and returns the path live reload watches.
func buildFetcher(cfg config.Config) (loader.Fetcher, string, error) {
	if cfg.Source.Path != "" {
		return datasource.SmartFetcher{Path: cfg.Source.Path, Strict: cfg.Tree.Strict}, cfg.Source.Path, nil
	}
	dir := cfg.Source.Dir
	if dir == "" {
		var err error
		if dir, err = loader.GetTreeDir(""); err != nil {
			return nil, "", err
		}
	}
	return datasource.SmartFetcher{Dir: dir, Strict: cfg.Tree.Strict}, dir, nil
}

func runValidate(entities []model.Entity, stdout, stderr io.Writer) int {
	if err := tree.Validate(entities); err != nil {
		var verr *tree.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				fmt.Fprintf(stdout, "%s: %s\n", p.Kind, p.Message)
			}
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFail
	}
	fmt.Fprintf(stdout, "ok: %d entities\n", len(entities))
	return exitOK
}

// applyEdits runs -move then -delete against the canonical tree and
// resynchronizes the filtered tree. When ask is set a delete is confirmed
// first.
func applyEdits(eng *tree.Engine, o options, ask bool, stderr io.Writer) int {
	if o.move != "" {
		target, dest, err := parseMove(o.move)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		if err := eng.Move(target, dest); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
		fmt.Fprintf(stderr, "moved %d into %d\n", target, dest)
	}
	if o.deleteSet {
		del := true
		if ent, ok := eng.Get(o.deleteID); ok && ask {
			var err error
			del, err = confirmFunc(fmt.Sprintf("Delete %s and everything inside it?", ent.Title))
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitFail
			}
		}
		if del {
			removed := eng.Delete(o.deleteID)
			fmt.Fprintf(stderr, "deleted %d entities\n", len(removed))
		} else {
			fmt.Fprintln(stderr, "delete cancelled")
		}
	}
	if o.move != "" || o.deleteSet {
		if err := eng.Refresh(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
	}
	return exitOK
}

// parseMove parses "target:destination".
func parseMove(s string) (int, int, error) {
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("-move wants target:destination, got %q", s)
	}
	target, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, fmt.Errorf("-move target: %w", err)
	}
	dest, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, fmt.Errorf("-move destination: %w", err)
	}
	return target, dest, nil
}

// jsonDoc is the -json output.
type jsonDoc struct {
	Query    string         `json:"query"`
	Root     *int           `json:"root"`
	Total    int            `json:"total"`
	Entities []model.Entity `json:"entities"`
}

func jsonView(eng *tree.Engine) jsonDoc {
	doc := jsonDoc{
		Query:    eng.Query(),
		Total:    eng.Tree().Len(),
		Entities: eng.Snapshot(),
	}
	if root, ok := eng.Root(); ok {
		id := root.ID
		doc.Root = &id
	}
	if doc.Entities == nil {
		doc.Entities = []model.Entity{}
	}
	return doc
}

// isSourceFile reports whether a file in the tree directory can feed a
// reload.
func isSourceFile(name string) bool {
	return strings.HasPrefix(name, datasource.DBName) || loader.IsEntityFile(name)
}

func startWatcher(ctx context.Context, cfg config.Config, path string, stderr io.Writer) *watcher.Watcher {
	w, err := watcher.New(path,
		watcher.WithDebounceDuration(cfg.Debounce()),
		watcher.WithPollInterval(cfg.PollInterval()),
		watcher.WithFilter(isSourceFile),
		watcher.WithOnError(func(err error) { debug.Log("watch: %v", err) }),
	)
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Warning: live reload disabled: %v\n", err)
		return nil
	}
	return w
}
