// Vehicle agent: receives command datagrams on UDP :4210 and drives the motor
// board over serial. With -virtual the board is simulated behind a socat pty pair.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IotCarRC/internal/core"
	"IotCarRC/internal/device"
	"IotCarRC/internal/model"
	"IotCarRC/internal/parser"
	"IotCarRC/internal/util"
)

const (
	virtualMotorPort = "/tmp/ttyIOTCAR0"
	virtualBoardPort = "/tmp/ttyIOTCAR1"
)

func main() {
	cfgPath := flag.String("c", "", "path to configuration file (empty for defaults)")
	vehicleID := flag.String("id", "car", "vehicle id")
	listen := flag.String("listen", "", "UDP listen address, overrides vehicle.listen")
	serialDev := flag.String("serial", "", "motor board serial device, overrides vehicle.serial_device")
	baud := flag.Int("baud", 0, "motor board baudrate, overrides vehicle.serial_baud")
	virtual := flag.Bool("virtual", false, "simulate the motor board on a virtual serial pair")
	listPorts := flag.Bool("ports", false, "list serial ports and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	util.SetupLogger(*debug)
	defer util.Sync()

	if *listPorts {
		ports, err := device.ListPorts()
		if err != nil {
			util.Error("[main] %v", err)
			os.Exit(1)
		}
		for _, p := range ports {
			util.Info("[main] serial port: %s", p)
		}
		return
	}

	cfg := model.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = model.LoadConfig(*cfgPath); err != nil {
			util.Error("[main] %v", err)
			os.Exit(1)
		}
	}
	if *listen != "" {
		cfg.Vehicle.Listen = *listen
	}
	if *serialDev != "" {
		cfg.Vehicle.SerialDevice = *serialDev
	}
	if *baud > 0 {
		cfg.Vehicle.SerialBaud = *baud
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simStop := make(chan struct{})
	if *virtual {
		socat := util.NewSocatManager()
		defer socat.Cleanup()
		if err := socat.CreatePair(virtualMotorPort, virtualBoardPort, 3*time.Second); err != nil {
			util.Error("[main] virtual serial: %v", err)
			os.Exit(1)
		}
		board, err := device.NewSerialDevice(virtualBoardPort, cfg.Vehicle.SerialBaud)
		if err != nil {
			util.Error("[main] open simulated board: %v", err)
			os.Exit(1)
		}
		defer board.Close()
		go func() {
			if err := device.StartSimulation(*vehicleID, board, simStop, nil); err != nil {
				util.Error("[main] motor simulation: %v", err)
			}
		}()
		cfg.Vehicle.SerialDevice = virtualMotorPort
	}

	var motor core.Motor
	if cfg.Vehicle.SerialDevice != "" {
		mc := device.NewMotorController(*vehicleID, cfg.Vehicle.SerialDevice, cfg.Vehicle.SerialBaud)
		if err := mc.Open(); err != nil {
			util.Error("[main] %v", err)
			os.Exit(1)
		}
		motor = mc
	} else {
		util.Info("[main] no motor board configured, commands are only logged")
	}

	v := core.NewVehicle(*vehicleID, cfg.Vehicle.Listen, parser.ProtocolFromConfig(cfg.Protocol), motor)
	if err := v.Start(); err != nil {
		util.Error("[main] %v", err)
		os.Exit(1)
	}

	<-ctx.Done()
	util.Info("[main] vehicle stopping")
	close(simStop)
	if err := v.Stop(); err != nil {
		util.Error("[main] stop: %v", err)
	}
}
