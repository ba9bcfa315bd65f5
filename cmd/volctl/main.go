// volctl reads and sets the master volume, and can keep it in sync with
// other machines through a relay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/vmorsell/volctl/internal/config"
	"github.com/vmorsell/volctl/internal/ratelimit"
	"github.com/vmorsell/volctl/internal/syncer"
	"github.com/vmorsell/volctl/internal/volume"
	"github.com/vmorsell/volctl/pkg/volctl"
	"go.uber.org/zap"
)

const usage = `Usage: volctl [flags] <command> [args]

Commands:
  get           print the master volume
  set <0-100>   set the master volume
  watch         print the master volume whenever it changes
  sync          keep the master volume in sync through a relay
  path          print the exported native library path

Flags:
`

type flags struct {
	configPath    string
	dir           string
	name          string
	multiInstance bool
	backend       string
	relayURL      string
	interval      time.Duration
	debug         bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var f flags
	flagSet := pflag.NewFlagSet("volctl", pflag.ContinueOnError)
	flagSet.StringVar(&f.configPath, "config", "", "path to config file (default: $"+config.EnvConfig+")")
	flagSet.StringVar(&f.dir, "dir", "", "directory to export the native library to (default: temp dir)")
	flagSet.StringVar(&f.name, "name", "", "native library file name without extension")
	flagSet.BoolVar(&f.multiInstance, "multi-instance", false, "export a separate library file for this instance")
	flagSet.StringVar(&f.backend, "backend", "", "volume backend: native or mixer")
	flagSet.StringVar(&f.relayURL, "relay", "", "relay websocket URL for sync")
	flagSet.DurationVar(&f.interval, "interval", 0, "volume poll interval for watch and sync")
	flagSet.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(flagSet, &f)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}
	if err := checkCommand(rest); err != nil {
		return err
	}

	ctl, err := openControl(logger, cfg)
	if err != nil {
		return err
	}

	switch cmd, cmdArgs := rest[0], rest[1:]; cmd {
	case "get":
		fmt.Println(ctl.GetVolume())
		return nil
	case "set":
		v, err := strconv.Atoi(cmdArgs[0])
		if err != nil {
			return fmt.Errorf("parse volume %q: %w", cmdArgs[0], err)
		}
		return ctl.SetVolume(v)
	case "path":
		fmt.Println(ctl.Path())
		return nil
	case "watch":
		return watch(logger, cfg, ctl)
	case "sync":
		return syncVolume(logger, cfg, ctl)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// checkCommand rejects unknown commands and bad arity before the native
// library is exported.
func checkCommand(rest []string) error {
	switch cmd := rest[0]; cmd {
	case "get", "path", "watch", "sync":
		return nil
	case "set":
		if len(rest) != 2 {
			return errors.New("set takes exactly one argument")
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadConfig(flagSet *pflag.FlagSet, f *flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("dir") {
		cfg.Library.Directory = f.dir
	}
	if flagSet.Changed("name") {
		cfg.Library.Name = f.name
	}
	if flagSet.Changed("multi-instance") {
		cfg.Library.MultiInstance = f.multiInstance
	}
	if flagSet.Changed("backend") {
		cfg.Library.Backend = f.backend
	}
	if flagSet.Changed("relay") {
		cfg.Relay.URL = f.relayURL
	}
	if flagSet.Changed("interval") {
		cfg.Listener.Interval = f.interval
	}
	if flagSet.Changed("debug") {
		cfg.Log.Debug = f.debug
	}
	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openControl(logger *zap.Logger, cfg *config.Config) (*volctl.VolumeControl, error) {
	if cfg.Library.Backend == config.BackendMixer {
		return volctl.FromBackend(volume.NewMixer(logger)), nil
	}

	opts := []volctl.Option{
		volctl.WithLogger(logger),
		volctl.WithMultiInstance(cfg.Library.MultiInstance),
	}
	if cfg.Library.Directory != "" {
		opts = append(opts, volctl.WithDirectory(cfg.Library.Directory))
	}
	if cfg.Library.Name != "" {
		opts = append(opts, volctl.WithName(cfg.Library.Name))
	}

	ctl, err := volctl.New(opts...)
	if err != nil {
		if errors.Is(err, volctl.ErrResourceMissing) {
			return nil, fmt.Errorf("%w (this build has no native library, try --backend=%s)", err, config.BackendMixer)
		}
		return nil, err
	}
	return ctl, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func watch(logger *zap.Logger, cfg *config.Config, ctl *volctl.VolumeControl) error {
	ctx, cancel := signalContext()
	defer cancel()

	listener := volume.NewListener(logger, ctl, cfg.Listener.Interval)
	fmt.Printf("%d\n", listener.GetCurrentVolume())
	for v := range listener.Listen(ctx) {
		fmt.Printf("%d\n", v)
	}
	return nil
}

func syncVolume(logger *zap.Logger, cfg *config.Config, ctl *volctl.VolumeControl) error {
	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("starting volume sync",
		zap.String("relay", cfg.Relay.URL),
		zap.Int("volume", ctl.GetVolume()))

	listener := volume.NewListener(logger, ctl, cfg.Listener.Interval)
	limiter := ratelimit.NewRateLimiter(cfg.Relay.VolumeChangeRate, ratelimit.DefaultWindowSize)
	client := syncer.New(logger, cfg.Relay.URL, ctl, listener, limiter)

	err := client.RunForever(ctx, cfg.Relay.RetryDelay)
	if errors.Is(err, syncer.ErrClosed) {
		logger.Info("shutting down")
		return nil
	}
	return err
}
