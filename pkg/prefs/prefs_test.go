package prefs

import (
	"bytes"
	"math"
	"testing"

	"github.com/FramKV/framkv/pkg/config"
	"github.com/FramKV/framkv/pkg/device"
)

func newTestPrefs(t *testing.T) *Prefs {
	t.Helper()
	cfg := config.NewDefaultConfig()
	dev, err := device.NewMemDevice(cfg.TotalMemoryBytes())
	if err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	p, err := Open(cfg, dev)
	if err != nil {
		t.Fatalf("Failed to open prefs: %v", err)
	}
	return p
}

func TestScalarRoundTrips(t *testing.T) {
	p := newTestPrefs(t)

	if err := p.PutBool("b", true); err != nil {
		t.Fatalf("PutBool: %v", err)
	}
	if got := p.GetBool("b", false); !got {
		t.Error("GetBool = false, want true")
	}

	if err := p.PutInt8("i8", -100); err != nil {
		t.Fatalf("PutInt8: %v", err)
	}
	if got := p.GetInt8("i8", 0); got != -100 {
		t.Errorf("GetInt8 = %d, want -100", got)
	}

	if err := p.PutUint8("u8", 250); err != nil {
		t.Fatalf("PutUint8: %v", err)
	}
	if got := p.GetUint8("u8", 0); got != 250 {
		t.Errorf("GetUint8 = %d, want 250", got)
	}

	if err := p.PutInt16("i16", -30000); err != nil {
		t.Fatalf("PutInt16: %v", err)
	}
	if got := p.GetInt16("i16", 0); got != -30000 {
		t.Errorf("GetInt16 = %d, want -30000", got)
	}

	if err := p.PutUint16("u16", 65000); err != nil {
		t.Fatalf("PutUint16: %v", err)
	}
	if got := p.GetUint16("u16", 0); got != 65000 {
		t.Errorf("GetUint16 = %d, want 65000", got)
	}

	if err := p.PutInt32("x", 42); err != nil {
		t.Fatalf("PutInt32: %v", err)
	}
	if got := p.GetInt32("x", 0); got != 42 {
		t.Errorf("GetInt32 = %d, want 42", got)
	}

	// Overwrite shadows the old value
	if err := p.PutInt32("x", 43); err != nil {
		t.Fatalf("PutInt32 overwrite: %v", err)
	}
	if got := p.GetInt32("x", 0); got != 43 {
		t.Errorf("GetInt32 after overwrite = %d, want 43", got)
	}

	if err := p.PutUint32("u32", 0xDEADBEEF); err != nil {
		t.Fatalf("PutUint32: %v", err)
	}
	if got := p.GetUint32("u32", 0); got != 0xDEADBEEF {
		t.Errorf("GetUint32 = %#x", got)
	}

	if err := p.PutInt64("i64", -1<<40); err != nil {
		t.Fatalf("PutInt64: %v", err)
	}
	if got := p.GetInt64("i64", 0); got != -1<<40 {
		t.Errorf("GetInt64 = %d", got)
	}

	if err := p.PutUint64("u64", 1<<60); err != nil {
		t.Fatalf("PutUint64: %v", err)
	}
	if got := p.GetUint64("u64", 0); got != 1<<60 {
		t.Errorf("GetUint64 = %d", got)
	}

	if err := p.PutFloat32("f32", 3.5); err != nil {
		t.Fatalf("PutFloat32: %v", err)
	}
	if got := p.GetFloat32("f32", 0); got != 3.5 {
		t.Errorf("GetFloat32 = %v", got)
	}

	if err := p.PutFloat64("f64", math.Pi); err != nil {
		t.Fatalf("PutFloat64: %v", err)
	}
	if got := p.GetFloat64("f64", 0); got != math.Pi {
		t.Errorf("GetFloat64 = %v", got)
	}
}

func TestLongTagsAreDistinct(t *testing.T) {
	p := newTestPrefs(t)

	if err := p.PutLong("l", -7); err != nil {
		t.Fatalf("PutLong: %v", err)
	}
	if got := p.GetLong("l", 0); got != -7 {
		t.Errorf("GetLong = %d, want -7", got)
	}

	// Same width, different tag: GetInt32 must not accept a long
	if got := p.GetInt32("l", 99); got != 99 {
		t.Errorf("GetInt32 over a long = %d, want default 99", got)
	}

	if err := p.PutULong("ul", 12345); err != nil {
		t.Fatalf("PutULong: %v", err)
	}
	if got := p.GetULong("ul", 0); got != 12345 {
		t.Errorf("GetULong = %d", got)
	}
}

func TestDefaultsOnMissingKey(t *testing.T) {
	p := newTestPrefs(t)

	if got := p.GetInt32("missing", -5); got != -5 {
		t.Errorf("GetInt32 default = %d, want -5", got)
	}
	if got := p.GetString("missing", "fallback"); got != "fallback" {
		t.Errorf("GetString default = %q", got)
	}
	if got := p.GetBool("missing", true); !got {
		t.Error("GetBool default = false, want true")
	}
	if got := p.GetBytes("missing"); got != nil {
		t.Errorf("GetBytes default = % 02x, want nil", got)
	}
}

func TestTypeMismatchReturnsDefault(t *testing.T) {
	p := newTestPrefs(t)

	if err := p.PutString("s", "text"); err != nil {
		t.Fatalf("PutString: %v", err)
	}

	if got := p.GetInt32("s", 7); got != 7 {
		t.Errorf("GetInt32 over a string = %d, want default", got)
	}
	if got := p.GetBool("s", false); got {
		t.Error("GetBool over a string = true, want default")
	}
	if got := p.GetBytes("s"); got != nil {
		t.Error("GetBytes over a string should return nil")
	}
}

func TestStringRoundTrip(t *testing.T) {
	p := newTestPrefs(t)

	if err := p.PutString("s", "hello"); err != nil {
		t.Fatalf("PutString: %v", err)
	}
	if got := p.GetString("s", "x"); got != "hello" {
		t.Errorf("GetString = %q, want hello", got)
	}

	// Empty string round-trips as empty, not as the default
	if err := p.PutString("e", ""); err != nil {
		t.Fatalf("PutString empty: %v", err)
	}
	if got := p.GetString("e", "x"); got != "" {
		t.Errorf("GetString empty = %q, want empty", got)
	}

	// The terminator byte is stored with the value
	entry, err := p.Store().FindEntry([]byte("s"))
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if entry.ValueLength != 6 {
		t.Errorf("stored string length = %d, want 6 (terminator included)", entry.ValueLength)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	p := newTestPrefs(t)

	blob := []byte{0x00, 0x01, 0xFE, 0xFF}
	if err := p.PutBytes("blob", blob); err != nil {
		t.Fatalf("PutBytes: %v", err)
	}
	if got := p.GetBytes("blob"); !bytes.Equal(got, blob) {
		t.Errorf("GetBytes = % 02x, want % 02x", got, blob)
	}
}

func TestRemoveAndHas(t *testing.T) {
	p := newTestPrefs(t)

	if err := p.PutString("s", "hello"); err != nil {
		t.Fatalf("PutString: %v", err)
	}

	ok, err := p.Has("s")
	if err != nil || !ok {
		t.Fatalf("Has = %v, %v", ok, err)
	}

	removed, err := p.Remove("s")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}

	ok, err = p.Has("s")
	if err != nil || ok {
		t.Errorf("Has after remove = %v, %v", ok, err)
	}
	if got := p.GetString("s", "x"); got != "x" {
		t.Errorf("GetString after remove = %q, want default", got)
	}

	// Removing a missing key reports false without error
	removed, err = p.Remove("s")
	if err != nil || removed {
		t.Errorf("second Remove = %v, %v", removed, err)
	}
}

func TestClearForgetsEverything(t *testing.T) {
	p := newTestPrefs(t)

	p.PutInt32("a", 1)
	p.PutString("b", "two")
	p.PutBytes("c", []byte{3})

	if err := p.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	for _, key := range []string{"a", "b", "c"} {
		if ok, _ := p.Has(key); ok {
			t.Errorf("key %q survived clear", key)
		}
	}
}

func TestTypeName(t *testing.T) {
	if TypeName(TypeString) != "string" || TypeName(TypeBool) != "bool" {
		t.Error("TypeName misreports common tags")
	}
	if TypeName(200) != "unknown" {
		t.Errorf("TypeName(200) = %q", TypeName(200))
	}
}
