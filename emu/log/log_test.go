package log

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestModuleByName(t *testing.T) {
	for _, name := range ModuleNames() {
		mod, ok := ModuleByName(name)
		if !ok {
			t.Fatalf("ModuleByName(%q) not found", name)
		}
		if mod.String() != name {
			t.Errorf("ModuleByName(%q).String() = %q", name, mod.String())
		}
	}

	if _, ok := ModuleByName("<error>"); ok {
		t.Errorf("placeholder module should not be found by name")
	}
	if _, ok := ModuleByName("bogus"); ok {
		t.Errorf("unexpected module bogus")
	}
}

func TestModuleEnabled(t *testing.T) {
	t.Cleanup(func() { DisableDebugModules(ModuleMaskAll) })

	if !ModCPU.Enabled(WarnLevel) {
		t.Errorf("warnings must always be enabled")
	}
	if ModCPU.Enabled(DebugLevel) {
		t.Errorf("cpu debug logs should be disabled by default")
	}

	EnableDebugModules(ModCPU.Mask())
	if !ModCPU.Enabled(DebugLevel) {
		t.Errorf("cpu debug logs should be enabled")
	}
	if ModSound.Enabled(DebugLevel) {
		t.Errorf("sound debug logs should still be disabled")
	}
	if ModSound.DebugZ("msg") != nil {
		t.Errorf("DebugZ on disabled module should return nil")
	}
}

func TestDisable(t *testing.T) {
	t.Cleanup(func() { disabled.Store(false) })

	Disable()
	if ModEmu.Enabled(PanicLevel) {
		t.Errorf("all levels should be disabled")
	}
	// Chaining on a nil entry must not panic.
	ModEmu.ErrorZ("msg").String("k", "v").Hex8("sp", 2).Hex16("pc", 0x200).Error("err", errors.New("e")).End()
}

func TestZFieldValue(t *testing.T) {
	tests := []struct {
		f    ZField
		want string
	}{
		{ZField{Type: FieldTypeBool, Boolean: true}, "true"},
		{ZField{Type: FieldTypeString, String: "abc"}, "abc"},
		{ZField{Type: FieldTypeHex8, Integer: 0xa}, "0a"},
		{ZField{Type: FieldTypeHex16, Integer: 0x200}, "0200"},
		{ZField{Type: FieldTypeInt, Integer: uint64(0xFFFFFFFFFFFFFFFF)}, "-1"},
		{ZField{Type: FieldTypeError}, "<nil>"},
		{ZField{Type: FieldTypeError, Error: errors.New("boom")}, "boom"},
		{ZField{Type: FieldTypeDuration, Duration: 1500 * time.Millisecond}, "1.5s"},
	}
	for _, tt := range tests {
		if got := tt.f.Value(); got != tt.want {
			t.Errorf("%+v: Value() = %q, want %q", tt.f, got, tt.want)
		}
	}
}

func TestEntryZFieldsOverflow(t *testing.T) {
	e := NewEntryZ()
	for i := range maxZFields + 4 {
		e.Int("i", i)
	}
	if e.zfidx != maxZFields {
		t.Fatalf("zfidx = %d, want %d", e.zfidx, maxZFields)
	}

	var keys []string
	for _, f := range e.zfbuf[:2] {
		keys = append(keys, f.Value())
	}
	if diff := cmp.Diff([]string{"0", "1"}, keys); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	entryPool.Put(e)
}
