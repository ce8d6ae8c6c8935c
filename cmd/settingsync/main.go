// settingsync mirrors a configuration directory into a git repository and
// synchronizes it with a remote.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/input-output-hk/catalyst-forge-libs/settingsync/dirhost"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/engine"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/git"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/owner"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/repository"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/settings"
	"github.com/input-output-hk/catalyst-forge-libs/settingsync/status"
)

var (
	configPath = flag.String("config", "", "path to settings file")
	verbose    = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "run":
		err = cmdRun(ctx, logger, args)
	case "sync":
		err = cmdSync(ctx, logger, args)
	case "status":
		err = cmdStatus(ctx, logger)
	case "log":
		err = cmdLog(ctx, logger, args)
	case "owner":
		err = cmdOwner(ctx, args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `settingsync - share configuration files through a git repository

Usage: settingsync [options] <command> [args]

Commands:
  run  -dir <path>      Mirror a directory and commit changes until interrupted
  sync -dir <path>      Flush the directory, then commit, pull and push once
  status                Connect to the repository and report its status
  log  [-n <count>]     Print recent settings revisions
  owner <project-key>   Print the owner id of a project, creating it if needed
  help                  Show this help message

Options:
  -config <path>  Path to settings file (default: $XDG_CONFIG_HOME/settingsync/settings.toml)
  -v              Enable debug logging`)
}

func loadSettings(logger *slog.Logger) (*settings.Loader, error) {
	loader := settings.NewLoader(*configPath, settings.WithLogger(logger))
	if _, err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// repositoryConfig maps the repository section onto a manager configuration.
func repositoryConfig(s *settings.Settings) (repository.Config, error) {
	r := s.Repository
	if err := os.MkdirAll(r.Path, 0o700); err != nil {
		return repository.Config{}, fmt.Errorf("create repository directory: %w", err)
	}
	return repository.Config{
		FS:          fsb.NewOSFS(r.Path),
		RemoteURL:   r.RemoteURL,
		RemoteName:  r.RemoteName,
		AuthorName:  r.AuthorName,
		AuthorEmail: r.AuthorEmail,
		Credentials: git.Credentials{
			Token:          r.Token,
			SSHKeyPath:     r.SSHKeyPath,
			SSHAgent:       r.SSHAgent,
			KnownHostsPath: r.KnownHosts,
		},
	}, nil
}

func opener(loader *settings.Loader, logger *slog.Logger) engine.Opener {
	return func(ctx context.Context) (repository.Manager, error) {
		cfg, err := repositoryConfig(loader.Current())
		if err != nil {
			return nil, err
		}
		return repository.OpenOrInit(ctx, cfg, repository.WithLogger(logger))
	}
}

// start builds the engine over a directory host and connects it.
func start(ctx context.Context, logger *slog.Logger, dir string) (*engine.Orchestrator, *dirhost.Host, *settings.Loader, error) {
	if dir == "" {
		return nil, nil, nil, fmt.Errorf("-dir is required")
	}

	loader, err := loadSettings(logger)
	if err != nil {
		return nil, nil, nil, err
	}

	host := dirhost.New(dir, dirhost.WithLogger(logger))
	eng, err := engine.New(opener(loader, logger), host, loader.Current, engine.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	host.Bind(eng.ApplicationBridge())

	st := eng.Connect(ctx)
	logger.Info("connected", slog.String("status", st.String()))
	return eng, host, loader, nil
}

func cmdRun(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dir := fs.String("dir", "", "configuration directory to mirror")
	_ = fs.Parse(args)

	eng, host, loader, err := start(ctx, logger, *dir)
	if err != nil {
		return err
	}
	defer loader.Close()
	defer eng.Close()
	defer host.Close()

	eng.Subscribe(func(s status.Status) {
		logger.Info("status changed", slog.String("status", s.String()))
	})
	loader.OnChange(func(s *settings.Settings) {
		logger.Info("settings changed", slog.Duration("commit_delay", s.CommitDelay.Duration))
	})
	if err := loader.Watch(); err != nil {
		return err
	}

	if err := host.Flush(ctx); err != nil {
		logger.Warn("initial flush failed", slog.String("error", err.Error()))
	} else {
		eng.RequestCommit()
	}
	if err := host.Watch(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case err := <-loader.Errors():
			logger.Warn("settings error", slog.String("error", err.Error()))
		}
	}
}

func cmdSync(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dir := fs.String("dir", "", "configuration directory to mirror")
	_ = fs.Parse(args)

	eng, _, loader, err := start(ctx, logger, *dir)
	if err != nil {
		return err
	}
	defer loader.Close()
	defer eng.Close()

	started := time.Now()
	err = eng.SyncNow(ctx)
	outcome := engine.OutcomeOf(err)
	fmt.Printf("Sync %s in %s\n", outcome, time.Since(started).Round(time.Millisecond))
	if outcome == engine.Cancelled {
		return nil
	}
	return err
}

func cmdStatus(ctx context.Context, logger *slog.Logger) error {
	loader, err := loadSettings(logger)
	if err != nil {
		return err
	}
	s := loader.Current()

	eng, err := engine.New(opener(loader, logger), nil, loader.Current, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer eng.Close()

	st := eng.Connect(ctx)
	fmt.Println("=== settingsync Status ===")
	fmt.Printf("Settings:     %s\n", loader.Path())
	fmt.Printf("Repository:   %s\n", s.Repository.Path)
	if s.Repository.RemoteURL != "" {
		fmt.Printf("Remote:       %s\n", s.Repository.RemoteURL)
	} else {
		fmt.Println("Remote:       (none)")
	}
	fmt.Printf("Commit delay: %s\n", s.CommitDelay)
	fmt.Printf("Status:       %s\n", st.Text())
	return nil
}

func cmdLog(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	n := fs.Int("n", 20, "number of revisions")
	_ = fs.Parse(args)

	loader, err := loadSettings(logger)
	if err != nil {
		return err
	}
	cfg, err := repositoryConfig(loader.Current())
	if err != nil {
		return err
	}
	m, err := repository.OpenOrInit(ctx, cfg, repository.WithLogger(logger))
	if err != nil {
		return err
	}
	defer m.Close()

	revs, err := m.History(ctx, *n)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		fmt.Println("No revisions")
		return nil
	}
	for _, r := range revs {
		subject := r.Description
		switch {
		case r.Conventional && r.Scope != "":
			subject = fmt.Sprintf("%s(%s): %s", r.Type, r.Scope, r.Description)
		case r.Conventional:
			subject = fmt.Sprintf("%s: %s", r.Type, r.Description)
		}
		fmt.Printf("%s  %s  %-16s %s\n", r.Hash[:8], r.When.Format(time.DateTime), r.Author, subject)
	}
	return nil
}

func cmdOwner(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: settingsync owner <project-key>")
	}

	store, err := owner.Open(filepath.Join(settings.DataDir(), owner.FileName))
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Ensure(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
