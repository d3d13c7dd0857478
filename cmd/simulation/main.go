// Drive simulator: replays scripted joystick drags and button presses through the
// full controller pipeline, for testing a vehicle without the operator UI.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IotCarRC/internal/core"
	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/util"
)

const (
	surfaceW = 800
	surfaceH = 400
)

type options struct {
	cfgPath  string
	host     string
	interval time.Duration
	loops    int
}

func main() {
	cfgPath := flag.String("c", "", "path to configuration file (empty for defaults)")
	host := flag.String("host", "127.0.0.1", "vehicle host")
	interval := flag.Int("interval", 50, "ms between touch samples")
	loops := flag.Int("loops", 1, "number of script repetitions (0 runs until interrupted)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	util.SetupLogger(*debug)
	defer util.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		cfgPath:  *cfgPath,
		host:     *host,
		interval: time.Duration(*interval) * time.Millisecond,
		loops:    *loops,
	}
	if err := run(ctx, opts); err != nil {
		util.Error("[sim] %v", err)
		util.Sync()
		os.Exit(1)
	}
}

// run builds the pipeline, plays the script and always closes the system,
// which delivers the final STOP.
func run(ctx context.Context, opts options) (err error) {
	sys, err := core.NewSystem(opts.cfgPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sys.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := sys.Transmitter.SetDestination(opts.host); err != nil {
		return err
	}
	sys.Transmitter.Start(ctx)

	c := sys.Controller
	if err := c.Resize(surfaceW, surfaceH); err != nil {
		return err
	}

	tick := time.NewTicker(opts.interval)
	defer tick.Stop()
	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
			return true
		}
	}

	util.Info("[sim] driving %s every %s", sys.Transmitter.Destination(), opts.interval)
	for i := 0; opts.loops == 0 || i < opts.loops; i++ {
		if !runScript(c, wait) {
			break
		}
	}
	if err := c.Stop(); err != nil {
		util.Error("[sim] stop: %v", err)
	}
	util.Info("[sim] done (%+v)", sys.Transmitter.Stats())
	return nil
}

// runScript drags the stick forward, sweeps it around the rim, releases it and
// taps the buttons. It returns false when interrupted.
func runScript(c *core.Controller, wait func() bool) bool {
	cx, cy := surfaceW/2.0, surfaceH/2.0
	r := math.Min(surfaceW, surfaceH) / 4

	for step := 0; step <= 10; step++ {
		if !touch(c, joystick.TouchSample{X: cx, Y: cy - r*float64(step)/10}) || !wait() {
			return false
		}
	}
	for deg := 90; deg <= 450; deg += 10 {
		a := float64(deg) * math.Pi / 180
		if !touch(c, joystick.TouchSample{X: cx + r*math.Cos(a), Y: cy - r*math.Sin(a)}) || !wait() {
			return false
		}
	}
	if !touch(c, joystick.TouchSample{Release: true}) || !wait() {
		return false
	}

	for _, op := range []model.Opcode{model.OpForward, model.OpLeft, model.OpRight, model.OpBackward} {
		if err := c.Press(op); err != nil {
			util.Error("[sim] %s: %v", op, err)
		}
		if !wait() {
			return false
		}
		if err := c.Release(); err != nil {
			util.Error("[sim] release: %v", err)
		}
		if !wait() {
			return false
		}
	}
	return true
}

func touch(c *core.Controller, s joystick.TouchSample) bool {
	res, err := c.Touch(s)
	if err != nil {
		util.Error("[sim] touch: %v", err)
		return false
	}
	util.Debug("[sim] stick %+v -> left=%d right=%d %s",
		res.Displacement, res.Command.LeftSpeed, res.Command.RightSpeed, res.Command.Direction)
	return true
}
