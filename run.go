package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veandco/go-sdl2/sdl"

	"chimp/emu"
	"chimp/hw/input"
	"chimp/hw/video"
	"chimp/rom"
	"chimp/term"
)

func loadRom(path string) *rom.Rom {
	if path == "" {
		return rom.Ready
	}
	r, err := rom.ReadRom(path)
	checkf(err, "failed to load ROM")
	return r
}

// windowMain runs the emulator in a SDL window.
func windowMain(path string, cfg emu.Config) {
	r := loadRom(path)

	var exitcode int
	sdl.Main(func() {
		win, err := video.NewWindow(video.Config{
			Title:        "chimp - " + r.Name,
			Scale:        cfg.Video.Scale,
			Monitor:      cfg.Video.Monitor,
			DisableVSync: cfg.Video.DisableVSync,
		}, cfg.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create window: %v\n", err)
			exitcode = 1
			return
		}
		exitcode = run(r, cfg, win)
	})
	os.Exit(exitcode)
}

// termMain runs the emulator in the terminal.
func termMain(path string, cfg emu.Config) {
	r := loadRom(path)

	t, err := term.Open(os.Stdin, os.Stdout)
	checkf(err, "failed to open terminal")
	os.Exit(run(r, cfg, t))
}

func run(r *rom.Rom, cfg emu.Config, out emu.Frontend) int {
	if tr, ok := cfg.TraceOut.(*outfile); ok {
		defer tr.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := emu.Launch(r.Data, cfg, out)
	if err != nil {
		out.Close()
		fmt.Fprintf(os.Stderr, "failed to start emulator: %v\n", err)
		return 1
	}
	if err := e.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "emulation error: %v\n", err)
		return 1
	}
	return 0
}

// mapKeyMain captures the next key or button press and binds it to a keypad
// key in the configuration file.
func mapKeyMain(key uint8) {
	var (
		code input.Code
		err  error
	)
	sdl.Main(func() {
		code, err = input.Capture(key)
	})
	checkf(err, "failed to capture input")

	cfg := emu.LoadConfigOrDefault()
	cfg.Input.Keys[key] = code
	checkf(emu.SaveDefaultConfig(cfg), "failed to save config")

	text, _ := code.MarshalText()
	if len(text) == 0 {
		text = []byte("unset")
	}
	fmt.Printf("keypad %X: %s\n", key, text)
}
