// Command cachectl inspects and maintains a swrcache store.
//
//	cachectl [-config cache.yaml] keys
//	cachectl [-config cache.yaml] get <key>
//	cachectl [-config cache.yaml] clear <key>
//	cachectl [-config cache.yaml] clear-all
//	cachectl [-config cache.yaml] preload <userID>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/community"
	"github.com/unkn0wn-root/swrcache/config"
	"github.com/unkn0wn-root/swrcache/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage: cachectl [-config file] keys | get <key> | clear <key> | clear-all | preload <userID>")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", os.Getenv("SWRCACHE_CONFIG"), "path to the YAML config")
	timeout := fs.Duration("timeout", 30*time.Second, "overall deadline")
	verbose := fs.Bool("v", false, "log at debug level")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, errUsage)
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging.Format = "console" // zap writes to stderr either way
	logger, err := bootstrap.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer app.Close(context.Background())

	if err := dispatch(ctx, app.Manager, fs.Args(), stdout); err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, m *swrcache.Manager, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	arg := func() (string, error) {
		if len(rest) != 1 || rest[0] == "" {
			return "", errUsage
		}
		return rest[0], nil
	}

	switch cmd {
	case "keys":
		keys, err := m.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil

	case "get":
		key, err := arg()
		if err != nil {
			return err
		}
		v, ok := swrcache.GetCachedData[any](ctx, m, key)
		if !ok {
			return fmt.Errorf("%s: not cached or expired", key)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "clear":
		key, err := arg()
		if err != nil {
			return err
		}
		m.ClearCache(ctx, key)
		fmt.Fprintf(out, "cleared %s\n", key)
		return nil

	case "clear-all":
		n := m.ClearAllCache(ctx)
		fmt.Fprintf(out, "removed %d keys\n", n)
		return nil

	case "preload":
		user, err := arg()
		if err != nil {
			return err
		}
		keys := community.PreloadKeys(user)
		n := m.PreloadCacheToMemory(ctx, keys)
		fmt.Fprintf(out, "%d/%d domain keys warm for %s\n", n, len(keys), user)
		return nil

	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
