// Package main is the entry point of the IotCarRC controller.
// It initializes the logger, loads the configuration, constructs the command
// pipeline and the operator web app, and runs them until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"IotCarRC/internal/app"
	"IotCarRC/internal/core"
	"IotCarRC/internal/model"
	"IotCarRC/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file (empty for defaults)")
	host := flag.String("host", "", "vehicle host, overrides transmitter.host")
	addr := flag.String("addr", "", "web app listen address, overrides app.addr")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := model.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = model.LoadConfig(*cfgPath); err != nil {
			util.SetupLogger(*debug)
			util.Error("[main] %v", err)
			os.Exit(1)
		}
	}
	if *host != "" {
		cfg.Transmitter.Host = *host
	}
	if *addr != "" {
		cfg.App.Addr = *addr
	}
	util.SetupLogger(*debug || cfg.Debug)
	defer util.Sync()

	util.Info("[main] using config: %q", *cfgPath)

	sys, err := core.NewSystemFromConfig(cfg)
	if err != nil {
		util.Error("[main] failed to create system: %v", err)
		os.Exit(1)
	}
	web, err := app.NewApp(sys)
	if err != nil {
		util.Error("[main] failed to create app: %v", err)
		_ = sys.Close()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sys.Run(ctx) })
	g.Go(func() error { return web.Start(cfg.App.Addr) })
	g.Go(func() error {
		<-ctx.Done()
		util.Info("[main] shutting down...")
		web.Stop()
		return nil
	})

	runErr := g.Wait()
	if err := sys.Close(); err != nil {
		util.Error("[main] close: %v", err)
	}
	if runErr != nil {
		util.Error("[main] %v", runErr)
		os.Exit(1)
	}
	util.Info("[main] stopped cleanly")
}
