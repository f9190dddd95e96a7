package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"chimp/emu"
	"chimp/rom"
)

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case versionMode:
		printVersion()
	case romInfosMode:
		r, err := rom.ReadRom(cli.RomInfos.RomPath)
		checkf(err, "failed to read ROM")
		r.PrintInfos(os.Stdout)
	case romsMode:
		paths, err := rom.List(cli.Roms.Dir)
		checkf(err, "failed to list ROMs")
		for _, path := range paths {
			fmt.Println(filepath.Base(path))
		}
	case mapKeyMode:
		mapKeyMain(uint8(cli.MapKey.Key))
	case termMode:
		cfg := emu.LoadConfigOrDefault()
		cli.Term.apply(&cfg)
		termMain(cli.Term.RomPath, cfg)
	default:
		cfg := emu.LoadConfigOrDefault()
		cli.Run.apply(&cfg)
		windowMain(cli.Run.RomPath, cfg)
	}
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("chimp", version)
}
