// Package rom loads CHIP-8 programs. A program is a raw memory image, loaded
// at address 0x200, without any header.
package rom

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"chimp/hw"
)

// Ext is the file extension of CHIP-8 programs, matched case-insensitively.
const Ext = ".ch8"

type Rom struct {
	Name string // Name is the base name of the file the program comes from.
	Data []byte
}

// ReadRom loads the program at path.
func ReadRom(path string) (*Rom, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ROM: %w", err)
	}
	defer f.Close()

	rom := &Rom{Name: filepath.Base(path)}
	if _, err := rom.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to read ROM %s: %w", path, err)
	}
	return rom, nil
}

// ReadFrom implements io.ReaderFrom interface.
func (rom *Rom) ReadFrom(r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if len(buf) == 0 {
		return 0, fmt.Errorf("empty program")
	}
	rom.Data = buf
	return int64(len(buf)), nil
}

// Truncated reports whether the program doesn't fit in memory, in which case
// only its first hw.MaxProgramSize bytes are loaded.
func (rom *Rom) Truncated() bool {
	return len(rom.Data) > hw.MaxProgramSize
}

// CRC32 returns the IEEE checksum of the program, used to identify it.
func (rom *Rom) CRC32() uint32 {
	return crc32.ChecksumIEEE(rom.Data)
}

// PrintInfos writes a short description of the program to w.
func (rom *Rom) PrintInfos(w io.Writer) {
	fmt.Fprintf(w, "Name: %s\n", rom.Name)
	fmt.Fprintf(w, "Size: %d bytes\n", len(rom.Data))
	fmt.Fprintf(w, "CRC32: 0x%08X\n", rom.CRC32())
	if rom.Truncated() {
		fmt.Fprintf(w, "Warning: larger than %d bytes, will be truncated\n", hw.MaxProgramSize)
	}
	if len(rom.Data) > 0 {
		n := min(len(rom.Data), 16)
		fmt.Fprintf(w, "First bytes: % X\n", rom.Data[:n])
	}
}

// List returns the sorted paths of the CHIP-8 programs in dir. Only files
// with the .ch8 extension, in any case, are listed.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list ROMs: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// Ready is the program run when none is given. It prints READY.
var Ready = &Rom{
	Name: "ready",
	Data: []byte{
		0x00, 0xE0, // clear screen
		0xA2, 0x1A, // I = sprites
		0x64, 0x05, // V4 = 5, sprite size
		0x61, 0x01, // V1 = 1, sprite counter
		0x62, 0x12, // V2 = x
		0x63, 0x0C, // V3 = y
		0xD2, 0x35, // 0x20C: draw sprite at (V2, V3)
		0x72, 0x05, // V2 += 5
		0xF4, 0x1E, // I += V4
		0x71, 0x01, // V1++
		0x31, 0x06, // skip if V1 == 6
		0x12, 0x0C, // jump 0x20C
		0x12, 0x18, // 0x218: loop forever

		0xE0, 0x90, 0xE0, 0x90, 0x90, // R
		0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
		0xF0, 0x90, 0xF0, 0x90, 0x90, // A
		0xE0, 0x90, 0x90, 0x90, 0xE0, // D
		0x90, 0x90, 0x60, 0x20, 0x20, // Y
	},
}
