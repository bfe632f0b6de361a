package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"waypoint-nav/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "nav_loop"
	app.Usage = "waypoint navigation and object chase over CAN"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "config/mission.yaml",
			Usage: "mission file (.yaml or .json)",
		},
		cli.StringFlag{
			Name:  "iface",
			Usage: "SocketCAN interface name, overrides the mission",
		},
		cli.StringFlag{
			Name:  "map",
			Usage: "path to the CAN map CSV, overrides the mission",
		},
		cli.StringFlag{
			Name:  "posecast",
			Usage: "websocket listen address for the pose stream, overrides the mission",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "info",
			Usage: "trace|debug|info|warn|error|critical",
		},
		cli.StringFlag{
			Name:  "logfile",
			Value: "nav_loop.log",
			Usage: "JSON log file",
		},
	}
	app.Action = func(c *cli.Context) error {
		return run(c, "")
	}
	app.Commands = []cli.Command{
		{
			Name:   "navigate",
			Usage:  "follow the mission's waypoint route",
			Action: func(c *cli.Context) error { return run(c, ModeNavigate) },
		},
		{
			Name:   "chase",
			Usage:  "keep a tracked object centered at a fixed distance",
			Action: func(c *cli.Context) error { return run(c, ModeChase) },
		},
		{
			Name:   "frames",
			Usage:  "list the frames of the CAN map",
			Action: listFrames,
		},
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// loadMission applies the command-line overrides to the mission file.
func loadMission(c *cli.Context, mode string) (Mission, error) {
	mission, err := LoadMission(c.GlobalString("config"))
	if err != nil {
		return Mission{}, err
	}
	if mode != "" {
		mission.Meta.ControlMode = mode
	}
	if v := c.GlobalString("iface"); v != "" {
		mission.CAN.Interface = v
	}
	if v := c.GlobalString("map"); v != "" {
		mission.CAN.MapPath = v
	}
	if v := c.GlobalString("posecast"); v != "" {
		mission.Debug.PosecastAddr = v
	}
	return mission, mission.Validate()
}

func run(c *cli.Context, mode string) error {
	level := parseLevel(c.GlobalString("log"))

	log, err := utils.NewFileLogger(c.GlobalString("logfile"), level, true)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", c.GlobalString("logfile"))
	}
	defer log.Close()

	mission, err := loadMission(c, mode)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, mission, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		return err
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		return err
	}
	return nil
}

func listFrames(c *cli.Context) error {
	mission, err := loadMission(c, "")
	if err != nil {
		return err
	}
	cmap, err := utils.LoadCANMap(mission.CAN.MapPath)
	if err != nil {
		return err
	}
	for _, dir := range []string{utils.DirectionRX, utils.DirectionTX} {
		for _, fd := range cmap.FramesByDirection(dir) {
			fmt.Printf("%s 0x%03X %-18s dlc=%d cycle_ms=%d\n", dir, fd.ID, fd.Name, fd.DLC, fd.CycleMS)
			for _, s := range fd.Signals {
				fmt.Printf("    %-16s bits %2d..%-2d factor=%g %s\n",
					s.Name, s.StartBit, s.StartBit+s.BitLength-1, s.Factor, s.Unit)
			}
		}
	}
	return nil
}

func parseLevel(s string) utils.LogLevel {
	switch s {
	case "trace":
		return utils.TRACE
	case "debug":
		return utils.DEBUG
	case "info":
		return utils.INFO
	case "warn", "warning":
		return utils.WARN
	case "error":
		return utils.ERROR
	case "critical":
		return utils.CRITICAL
	default:
		return utils.INFO
	}
}
