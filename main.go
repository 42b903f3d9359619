// Command piglet executes CHIP-8 programs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"syscall"

	"github.com/nf/piglet/chip8"
	"github.com/nf/piglet/piglet"
)

func main() {
	log.SetPrefix("piglet: ")
	log.SetFlags(0)

	var (
		cliFlag   = flag.Bool("cli", false, "draw with plain escape sequences instead of a full-screen terminal UI")
		guiFlag   = flag.Bool("gui", false, "show the display in a window")
		debugFlag = flag.Bool("debug", false, "enable debugger in the terminal (implies -gui)")
		watchFlag = flag.Bool("watch", false, "reload the program when its file changes")
		evdevFlag = flag.String("evdev", "", "read keys from the input event `device`, such as /dev/input/event0")

		hzFlag      = flag.Int("hz", piglet.DefaultConfig.ExecHz, "instructions per second")
		timerHzFlag = flag.Int("timer_hz", piglet.DefaultConfig.TimerHz, "timer decrements per second")
		scaleFlag   = flag.Int("scale", piglet.DefaultConfig.Scale, "window pixels per display pixel")
		holdFlag    = flag.Duration("key_hold", piglet.DefaultConfig.KeyHold, "how long a key typed in a terminal stays pressed")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-cli | -gui | -debug] [-watch] [-evdev device] <program.ch8>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}
	if *cliFlag && (*guiFlag || *debugFlag) {
		log.Fatal("-cli cannot be used with -gui or -debug")
	}

	cfg := piglet.Config{
		ExecHz:  *hzFlag,
		TimerHz: *timerHzFlag,
		Scale:   *scaleFlag,
		KeyHold: *holdFlag,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	err := run(cfg, options{
		romFile: flag.Arg(0),
		cli:     *cliFlag,
		gui:     *guiFlag || *debugFlag,
		debug:   *debugFlag,
		watch:   *watchFlag,
		evdev:   *evdevFlag,
	})

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

type options struct {
	romFile string
	cli     bool
	gui     bool
	debug   bool
	watch   bool
	evdev   string
}

func run(cfg piglet.Config, opt options) error {
	rom, err := readROM(opt.romFile)
	if err != nil {
		return err
	}

	keys := piglet.NewKeypad()
	var input chip8.Input = keys
	if opt.evdev != "" {
		ev, err := piglet.OpenEvdev(opt.evdev)
		if err != nil {
			return err
		}
		defer ev.Close()
		input = ev
	}

	var fe piglet.Frontend
	switch {
	case opt.gui:
		fe = piglet.NewGUI(keys, cfg)
	case opt.cli:
		fe = piglet.NewANSI(keys, cfg, os.Stdin, os.Stdout)
	default:
		fe = piglet.NewTerminal(keys, cfg, filepath.Base(opt.romFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := piglet.NewRunner(cfg, fe, input)
	if opt.watch || opt.debug {
		r.Linger()
	}
	if opt.debug {
		d := newDebugger(r)
		r.SetStateFunc(d.StateFunc)
		log.SetPrefix("")
		log.SetOutput(d.log)
		go func() {
			if err := d.Run(); err != nil {
				log.SetOutput(os.Stderr)
				log.Printf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("piglet: ")
			cancel()
		}()
		defer d.Stop()
	}
	if opt.watch {
		go func() {
			if err := watch(ctx, opt.romFile, r); err != nil {
				log.Printf("watch: %v", err)
			}
		}()
	}

	var (
		exit   = make(chan bool)
		runErr = make(chan error, 1)
	)
	go func() {
		err := r.Run(ctx, rom)
		close(exit)
		runErr <- err
	}()

	// The frontend runs on the main goroutine, as the window system
	// requires.
	feErr := fe.Run(exit)
	cancel()
	err = <-runErr
	if feErr != nil {
		return feErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readROM reads a program file, checking that it fits in memory.
func readROM(name string) ([]byte, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", name)
	}
	if fi.Size() > chip8.MaxROMSize {
		return nil, fmt.Errorf("%s: %w: %d bytes (max %d)", name, chip8.ErrROMTooLarge, fi.Size(), chip8.MaxROMSize)
	}
	return os.ReadFile(name)
}
