// Package main implements the STiB daemon, a Telegram bot that tracks screen
// time while a timer runs and reminds the user to take breaks.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	rootpkg "tools.zach/dev/stib"
	"tools.zach/dev/stib/internal/atomicfile"
	"tools.zach/dev/stib/internal/config"
	"tools.zach/dev/stib/internal/logger"
	"tools.zach/dev/stib/internal/paths"
	"tools.zach/dev/stib/internal/telegram"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags (-X main.version=0.1.0). Without
// it, resolveVersion reads the VCS info the Go toolchain embeds.
var version = "dev"

// resolveVersion returns the ldflags version, or "dev+<hash>[.dirty]" from
// the embedded VCS revision.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	ctx, stop := signalContext(context.Background())
	code := daemon(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

// daemon runs STiB until ctx is cancelled and returns the process exit code:
// 0 after a clean shutdown, 1 on a startup failure or internal error, 2 on a
// bad flag.
func daemon(ctx context.Context, args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	fs := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory for config, PID file and logs")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ver := resolveVersion()
	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", paths.BinaryName, ver)
		return 0
	}

	dp := DataPaths{Root: *dataDir}
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(stderr, "fatal: create data dir: %v\n", err)
		return 1
	}

	lock, err := acquirePID(dp)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	defer lock.Release()

	if _, err := atomicfile.WriteIfAbsent(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); err != nil {
		fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dp.Root)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return 1
	}
	secrets, err := cfg.ResolveSecrets(lookupEnv)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	var console io.Writer
	if cfg.Log.Console {
		console = stderr
	}
	log, logCloser, err := logger.NewLogger(dp.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB, console)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)
	log.Info("stib starting", "version", ver, "data_dir", dp.Root)

	bot, err := telegram.New(telegram.Options{
		Token:           secrets.Token,
		ChatID:          secrets.ChatID,
		Endpoint:        cfg.Telegram.APIEndpoint,
		PollTimeout:     cfg.Telegram.PollTimeout(),
		RetryMax:        cfg.Telegram.RetryMax,
		AllowOtherChats: cfg.Telegram.AllowOtherChats,
		Logger:          log,
	})
	if err != nil {
		logger.Fail(log, "failed to connect to telegram", "error", err)
		return 1
	}

	a := assemble(cfg, bot, log)
	if err := bot.SetCommands(a.router); err != nil {
		log.Warn("command menu not registered", "error", err)
	}

	if err := a.coordinator.Run(ctx); err != nil {
		log.Error("stib stopped after an internal error", "error", err)
		return 1
	}
	return 0
}
