// Command bootstrap loads an application's configuration and maintains its
// configuration cache.
//
// Usage:
//
//	bootstrap [flags] dump          print the effective configuration
//	bootstrap [flags] cache:clear   remove cached configuration artifacts
//	bootstrap [flags] cache:warmup  rebuild the configuration cache
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(1)
	}
}

type flags struct {
	baseDir string
	env     string
	name    string
	debug   bool
	noCache bool
	format  string
	sources bool
	color   string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	fs.SetOutput(stderr)

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	defaults := app.OptionsFromEnv(wd)

	var f flags
	fs.StringVar(&f.baseDir, "base-dir", wd, "application base directory")
	fs.StringVar(&f.env, "env", defaults.Env, "environment name (HOST_ENV)")
	fs.StringVar(&f.name, "name", defaults.Name, "application name (HOST_APP)")
	fs.BoolVar(&f.debug, "debug", defaults.Debug, "debug mode (HOST_DEBUG)")
	fs.BoolVar(&f.noCache, "no-cache", false, "bypass the configuration cache")
	fs.StringVarP(&f.format, "format", "f", "text", "dump format: text, json or yaml")
	fs.BoolVar(&f.sources, "sources", false, "show the file each key came from (text format)")
	fs.StringVar(&f.color, "color", "auto", "highlight yaml output: auto, always or never")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: bootstrap [flags] dump|cache:clear|cache:warmup")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one command is required")
	}

	logger := newLogger(stderr, f.debug)

	opts := app.OptionsFromEnv(f.baseDir)
	opts.Env = f.env
	opts.Name = f.name
	opts.Debug = f.debug
	opts.Cache = !f.noCache

	switch cmd := fs.Arg(0); cmd {
	case "dump":
		return dump(ctx, opts, f, logger, stdout)
	case "cache:clear":
		return clearCache(ctx, opts, logger, stdout)
	case "cache:warmup":
		if err := clearCache(ctx, opts, logger, stdout); err != nil {
			return err
		}
		opts.Cache = true
		a, err := app.New(ctx, opts, logger)
		if err != nil {
			return err
		}
		if err := a.Boot(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "configuration cache warmed for %s (%s)\n", opts.Name, opts.Env)
		return nil
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal(w),
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "bootstrap").Logger()
}

func dump(ctx context.Context, opts app.Options, f flags, logger zerolog.Logger, stdout io.Writer) error {
	a, err := app.New(ctx, opts, logger)
	if err != nil {
		return err
	}
	if err := a.Boot(ctx); err != nil {
		return err
	}

	var dumpOpts []framework.DumpOption
	switch f.format {
	case "text":
		if f.sources {
			dumpOpts = append(dumpOpts, framework.WithSources())
		}
	case "json":
		dumpOpts = append(dumpOpts, framework.AsJSON())
	case "yaml":
		dumpOpts = append(dumpOpts, framework.AsYAML())
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", f.format)
	}

	var buf bytes.Buffer
	if err := framework.DumpTree(&buf, a.Config(), dumpOpts...); err != nil {
		return err
	}

	if f.format != "text" && useColor(f.color, stdout) {
		return quick.Highlight(stdout, buf.String(), f.format, "terminal256", "monokai")
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

func clearCache(ctx context.Context, opts app.Options, logger zerolog.Logger, stdout io.Writer) error {
	opts.Cache = true
	a, err := app.New(ctx, opts, logger)
	if err != nil {
		return err
	}
	cached, err := a.CachedLoader()
	if err != nil {
		return err
	}
	removed, err := cached.Clear()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "removed %d cached configuration file(s)\n", removed)
	return nil
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return isTerminal(w)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
