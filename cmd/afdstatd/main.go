// Command afdstatd runs the statistics sampler daemon. It attaches the
// output and input statistics stores for the current year, rebuilding them
// against the producer status areas, then advances the counters once per
// sample interval until it is told to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	btoml "github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/afdtools/afdstats/logger"
	"github.com/afdtools/afdstats/stat"
	"github.com/afdtools/afdstats/toml"
)

// config is the daemon configuration file.
type config struct {
	Sampler stat.Config   `toml:"sampler"`
	Logging logger.Config `toml:"logging"`
}

func newConfig() config {
	return config{
		Sampler: stat.NewConfig(),
		Logging: logger.NewConfig(),
	}
}

func main() {
	v := viper.New()
	v.SetEnvPrefix("AFDSTATD")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "afdstatd",
		Short:         "AFD statistics sampler daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}
	bindFlags(v, cmd.Flags())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "afdstatd: %v\n", err)
		os.Exit(1)
	}
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "configuration file")
	fs.StringP("work-dir", "w", "", "AFD working directory")
	fs.Duration("sample-interval", 0, "override the counter sample interval")
	for _, name := range []string{"config", "work-dir", "sample-interval"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func run(v *viper.Viper) error {
	c := newConfig()
	if path := v.GetString("config"); path != "" {
		if _, err := btoml.DecodeFile(path, &c); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}
	if wd := v.GetString("work-dir"); wd != "" {
		c.Sampler.WorkDir = wd
	}
	if iv := v.GetDuration("sample-interval"); iv > 0 {
		c.Sampler.SampleInterval = toml.Duration(iv)
	}
	if c.Sampler.WorkDir == "" {
		c.Sampler.WorkDir = os.Getenv("AFD_WORK_DIR")
	}
	if c.Sampler.WorkDir == "" {
		return fmt.Errorf("no working directory; use -w, the config file or AFD_WORK_DIR")
	}

	log, err := c.Logging.New(os.Stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	hosts, err := stat.OpenHostArea(stat.HostAreaPath(c.Sampler.WorkDir))
	if err != nil {
		return fmt.Errorf("host status area: %w", err)
	}
	defer hosts.Close()
	dirs, err := stat.OpenDirArea(stat.DirAreaPath(c.Sampler.WorkDir))
	if err != nil {
		return fmt.Errorf("dir status area: %w", err)
	}
	defer dirs.Close()

	sampler := stat.NewSampler(c.Sampler, hosts, dirs)
	sampler.WithLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sampler.Open(ctx); err != nil {
		return err
	}

	// Reload requests make no sense for a pure sampler; the stores are
	// re-reconciled automatically when the rosters change.
	signal.Ignore(syscall.SIGHUP)

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigC:
		log.Info("Signal received, shutting down", zap.String("signal", sig.String()))
	case err := <-sampler.Err():
		log.Error("Sampler failed", zap.Error(err))
		sampler.Close()
		return err
	}

	if err := sampler.Close(); err != nil {
		log.Error("Shutdown incomplete", zap.Error(err))
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
