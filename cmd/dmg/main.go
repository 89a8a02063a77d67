package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"
	"github.com/valerio/go-libdmg/dmg"
	"github.com/valerio/go-libdmg/dmg/cart"
	"github.com/valerio/go-libdmg/dmg/logbuf"
	"github.com/valerio/go-libdmg/dmg/monitor"
)

var (
	bootFlag = cli.StringFlag{
		Name:  "boot",
		Usage: "Path to a 256 byte boot ROM (boot is skipped when omitted)",
	}
	romFlag = cli.StringFlag{
		Name:  "rom",
		Usage: "Path to the ROM file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "Minimum log level: debug, info, warn or error",
		Value: "warn",
	}
	cyclesFlag = cli.IntFlag{
		Name:  "cycles",
		Usage: "Number of cycles to run",
		Value: dmg.CyclesPerFrame,
	}
	stepFlag = cli.IntFlag{
		Name:  "step",
		Usage: "Cycles per Step call",
		Value: 4,
	}
	saveStateFlag = cli.StringFlag{
		Name:  "save-state",
		Usage: "Write the machine state to this file when done",
	}
	loadStateFlag = cli.StringFlag{
		Name:  "load-state",
		Usage: "Resume from a machine state written by --save-state",
	}
)

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	runFlags := []cli.Flag{bootFlag, romFlag, logLevelFlag, cyclesFlag, stepFlag, saveStateFlag, loadStateFlag}

	app := cli.NewApp()
	app.Name = "dmg"
	app.Description = "A headless Game Boy core"
	app.Usage = "dmg [command] [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = runFlags
	app.Action = runEmulator
	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "Run the emulator for a number of cycles and print the registers",
			Flags:  runFlags,
			Action: runEmulator,
		},
		{
			Name:   "header",
			Usage:  "Print the cartridge header",
			Flags:  []cli.Flag{romFlag},
			Action: printHeader,
		},
		{
			Name:   "monitor",
			Usage:  "Inspect and step the emulator in the terminal",
			Flags:  []cli.Flag{bootFlag, romFlag, logLevelFlag, saveStateFlag, loadStateFlag},
			Action: runMonitor,
		},
	}
	return app
}

func romPath(c *cli.Context) string {
	if path := c.String("rom"); path != "" {
		return path
	}
	return c.Args().First()
}

func parseLevel(c *cli.Context) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return level, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

func loadState(emu *dmg.Emulator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open save state: %w", err)
	}
	defer f.Close()
	return emu.LoadState(f)
}

func saveState(emu *dmg.Emulator, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create save state: %w", err)
	}
	if err := emu.SaveState(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// newEmulator loads the files named by the flags and applies --load-state.
func newEmulator(c *cli.Context, logger *slog.Logger) (*dmg.Emulator, error) {
	emu, err := dmg.NewWithFiles(c.String("boot"), romPath(c), logger)
	if err != nil {
		return nil, err
	}

	if path := c.String("load-state"); path != "" {
		if err := loadState(emu, path); err != nil {
			return nil, err
		}
		logger.Info("Loaded save state", "path", path)
	}
	return emu, nil
}

func runEmulator(c *cli.Context) error {
	level, err := parseLevel(c)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cycles, step := c.Int("cycles"), c.Int("step")
	if cycles < 0 || step <= 0 {
		return errors.New("--cycles must not be negative and --step must be positive")
	}

	emu, err := newEmulator(c, logger)
	if err != nil {
		return err
	}

	for remaining := cycles; remaining > 0; remaining -= step {
		emu.Step(min(step, remaining))
	}
	logger.Info("Run completed", "cycles", cycles, "step", step)

	if path := c.String("save-state"); path != "" {
		if err := saveState(emu, path); err != nil {
			return err
		}
		logger.Info("Saved state", "path", path)
	}

	p := emu.Peripherals()
	fmt.Fprintln(c.App.Writer, emu.CPU())
	fmt.Fprintf(c.App.Writer, "LCD:%s LY:%d IME:%t\n", p.LCD().Mode(), p.LCD().LY(), p.IME())
	return nil
}

func printHeader(c *cli.Context) error {
	path := romPath(c)
	if path == "" {
		cli.ShowCommandHelp(c, "header")
		return errors.New("no ROM path provided")
	}

	cartridge, err := cart.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, cartridge)
	return nil
}

func runMonitor(c *cli.Context) error {
	level, err := parseLevel(c)
	if err != nil {
		return err
	}

	logs := logbuf.New(200)
	logger := logbuf.NewLogger(logs, level)

	emu, err := newEmulator(c, logger)
	if err != nil {
		return err
	}

	m, err := monitor.Open(emu, monitor.Options{
		Logs:      logs,
		Logger:    logger,
		StatePath: c.String("save-state"),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	m.Run()
	return nil
}
