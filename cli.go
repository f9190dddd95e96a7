package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"chimp/emu"
	"chimp/emu/log"
)

type mode byte

const (
	runMode      mode = iota // Run a ROM in a window
	termMode                 // Run a ROM in the terminal
	romsMode                 // List ROMs
	romInfosMode             // Show ROM infos
	mapKeyMode               // Capture the input bound to a keypad key
	versionMode              // Show chimp version
)

type (
	CLI struct {
		Run      Run      `cmd:"" help:"Run ROM in a window. (default command)" default:"withargs"`
		Term     Term     `cmd:"" help:"Run ROM in the terminal."`
		Roms     Roms     `cmd:"" help:"List the ROMs in a directory."`
		RomInfos RomInfos `cmd:"" help:"Show ROM infos." name:"rom-infos"`
		MapKey   MapKey   `cmd:"" help:"Bind a key or controller button to a keypad key." name:"map-key"`
		Version  Version  `cmd:"" help:"Show chimp version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	// EmuFlags are the flags shared by the window and terminal frontends.
	// Zero values keep the configured settings.
	EmuFlags struct {
		RomPath string `arg:"" name:"/path/to/rom" help:"${rompath_help}" optional:"" type:"existingfile"`

		Speed       int      `name:"speed" help:"Instructions per second (${min_speed}-${max_speed})."`
		ShiftVY     bool     `name:"shift-vy" help:"Shift instructions operate on VY."`
		IncrementI  bool     `name:"increment-i" help:"Register load and store instructions increment I."`
		Strict      bool     `name:"strict" help:"Halt on stack overflow and underflow."`
		NoAudio     bool     `name:"no-audio" help:"Disable audio output."`
		BandLimited bool     `name:"band-limited" help:"Synthesize a band-limited square wave."`
		WAV         string   `name:"wav" help:"Record audio output to a WAV file." type:"path"`
		Trace       *outfile `name:"trace" help:"Write execution trace." placeholder:"FILE|stdout|stderr"`
	}

	Run struct {
		EmuFlags `embed:""`

		Scale   int   `name:"scale" help:"Window scale factor."`
		Monitor int32 `name:"monitor" help:"Monitor index to use." default:"-1"`
	}

	Term struct {
		EmuFlags `embed:""`
	}

	Roms struct {
		Dir string `arg:"" name:"/path/to/dir" type:"existingdir"`
	}

	RomInfos struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`
	}

	MapKey struct {
		Key keypadKey `arg:"" name:"key" help:"Keypad key, 0 to F."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"rompath_help": "ROM to run. Without it, a built-in program is run.",
	"log_help":     "Enable logging for specified modules.",
	"min_speed":    fmt.Sprint(emu.MinSpeed),
	"max_speed":    fmt.Sprint(emu.MaxSpeed),
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("chimp"),
		kong.Description("CHIP-8 virtual machine."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")

	cmd := ctx.Command()
	switch {
	case strings.HasPrefix(cmd, "term"):
		cfg.mode = termMode
	case strings.HasPrefix(cmd, "roms"):
		cfg.mode = romsMode
	case strings.HasPrefix(cmd, "rom-infos"):
		cfg.mode = romInfosMode
	case strings.HasPrefix(cmd, "map-key"):
		cfg.mode = mapKeyMode
	case cmd == "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

// apply overrides cfg with the flags that have been set.
func (f *EmuFlags) apply(cfg *emu.Config) {
	if f.Speed != 0 {
		cfg.Emulation.InstructionsPerSecond = f.Speed
	}
	if f.ShiftVY {
		cfg.Emulation.Quirks.ShiftUsingVY = true
	}
	if f.IncrementI {
		cfg.Emulation.Quirks.IncrementIOnLoadStore = true
	}
	if f.Strict {
		cfg.Emulation.StrictStack = true
	}
	if f.NoAudio {
		cfg.Audio.DisableAudio = true
	}
	if f.BandLimited {
		cfg.Audio.BandLimited = true
	}
	if f.Trace != nil {
		cfg.TraceOut = f.Trace
	}
	cfg.WAVPath = f.WAV
	cfg.Check()
}

func (r *Run) apply(cfg *emu.Config) {
	r.EmuFlags.apply(cfg)
	if r.Scale > 0 {
		cfg.Video.Scale = r.Scale
	}
	if r.Monitor >= 0 {
		cfg.Video.Monitor = r.Monitor
	}
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	cmd := ctx.Command()
	if strings.HasPrefix(cmd, "run") || strings.HasPrefix(cmd, "term") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

// keypadKey is a keypad key given as a single hexadecimal digit.
type keypadKey uint8

// Implements kong.MapperValue interface.
func (k *keypadKey) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, _ := tok.Value.(string)
	if len(s) != 1 {
		return fmt.Errorf("invalid keypad key %q", s)
	}
	var v uint8
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return fmt.Errorf("invalid keypad key %q", s)
	}
	*k = keypadKey(v)
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
