package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasishim/config"
	"github.com/wippyai/wasishim/runtime"
	"github.com/wippyai/wasishim/wasi/preview1"
	"github.com/wippyai/wasishim/wasi/preview1/filesystem"
)

// exitError carries a guest exit code out of run.
type exitError struct {
	code uint32
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if exit, ok := err.(*exitError); ok {
			os.Exit(int(exit.code))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config      string
	env         []string
	preopens    []string
	files       []string
	raw         bool
	logLevel    string
	interactive bool
	memoryPages uint32
}

func run(argv []string) error {
	var f flags

	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&f.config, "config", "", "YAML run description")
	flagSet.StringArrayVar(&f.env, "env", nil, "guest environment variable KEY=VAL (repeatable)")
	flagSet.StringArrayVar(&f.preopens, "preopen", nil, "guest directory to preopen (repeatable)")
	flagSet.StringArrayVar(&f.files, "file", nil, "seed guest file from host file, guest=host (repeatable)")
	flagSet.BoolVar(&f.raw, "raw", false, "pass guest output through without UTF-8 repair")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.BoolVarP(&f.interactive, "interactive", "i", false, "run in an interactive console")
	flagSet.Uint32Var(&f.memoryPages, "memory-pages", 0, "guest memory limit in 64 KiB pages (0 = wazero default)")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("missing guest module")
	}
	wasmFile, guestArgs := args[0], args[1:]
	if len(guestArgs) > 0 && guestArgs[0] == "--" {
		guestArgs = guestArgs[1:]
	}

	cfg, err := buildConfig(f, wasmFile, guestArgs)
	if err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	runtime.SetLogger(logger)

	wasm, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []runtime.Option
	opts = append(opts, runtime.WithLayout(cfg.Layout()))
	if f.memoryPages > 0 {
		opts = append(opts, runtime.WithMemoryLimitPages(f.memoryPages))
	}

	if f.interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal on stdin")
		}
		return runInteractive(ctx, wasmFile, wasm, cfg, opts)
	}

	stdio := guestIO{
		stdin:  filesystem.ReaderSource(os.Stdin),
		stdout: outputSink(cfg.Output, func(s string) { _, _ = os.Stdout.WriteString(s) }, os.Stdout),
		stderr: outputSink(cfg.Output, func(s string) { _, _ = os.Stderr.WriteString(s) }, os.Stderr),
	}
	code, err := execute(ctx, wasm, cfg, stdio, opts)
	if err != nil {
		return err
	}
	logger.Debug("guest exited", zap.Uint32("code", code))
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// buildConfig loads the optional config file and layers the flags on top.
func buildConfig(f flags, wasmFile string, guestArgs []string) (*config.Config, error) {
	cfg := &config.Config{}
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}

	if len(guestArgs) > 0 || len(cfg.Args) == 0 {
		cfg.Args = append([]string{filepath.Base(wasmFile)}, guestArgs...)
	}

	for _, kv := range f.env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--env %q: want KEY=VAL", kv)
		}
		if cfg.Env == nil {
			cfg.Env = make(map[string]string)
		}
		cfg.Env[key] = value
	}

	cfg.Preopens = append(cfg.Preopens, f.preopens...)

	for _, mapping := range f.files {
		guest, host, ok := strings.Cut(mapping, "=")
		if !ok || guest == "" || host == "" {
			return nil, fmt.Errorf("--file %q: want guest=host", mapping)
		}
		host, err := filepath.Abs(host)
		if err != nil {
			return nil, err
		}
		cfg.Files = append(cfg.Files, config.File{Path: guest, Host: host})
	}

	if f.raw {
		cfg.Output = config.OutputRaw
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type guestIO struct {
	stdin          filesystem.Source
	stdout, stderr filesystem.Sink
}

func outputSink(mode string, text func(string), raw *os.File) filesystem.Sink {
	if mode == config.OutputRaw {
		return filesystem.WriterSink(raw)
	}
	return filesystem.TextSink(text)
}

// execute seeds the filesystem, builds the features and runs _start.
func execute(ctx context.Context, wasm []byte, cfg *config.Config, stdio guestIO, opts []runtime.Option) (uint32, error) {
	fs, err := cfg.BuildFS(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = fs.Close() }()

	features, err := runtime.Features(cfg.FeatureList(), filesystem.Options{
		FS:     fs,
		Stdin:  stdio.stdin,
		Stdout: stdio.stdout,
		Stderr: stdio.stderr,
	})
	if err != nil {
		return 0, err
	}

	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rt.Close(ctx) }()

	return rt.Run(ctx, wasm, preview1.Options{
		Args:     cfg.Args,
		Env:      cfg.Env,
		Features: features,
	})
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Run a WASI preview1 command module in an in-memory sandbox.

Usage:
  run [flags] <guest.wasm> [-- guest args...]

Examples:
  run hello.wasm
  run --preopen /sandbox --file /sandbox/in.txt=./in.txt cat.wasm /sandbox/in.txt
  run --config run.yaml -i repl.wasm

Flags:
`)
	flagSet.PrintDefaults()
}
