package store

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/FramKV/framkv/pkg/device"
	"github.com/FramKV/framkv/pkg/layout"
)

// reopen builds a fresh Store over an existing device image and begins it.
func reopen(t *testing.T, dev device.Device) *Store {
	t.Helper()
	s, err := NewStore(testConfig(), dev)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	return s
}

func TestRecoveryFromCorruptGlobalHeader(t *testing.T) {
	s, dev := newTestStore(t)

	expect := map[string][]byte{
		"alpha": []byte("one"),
		"beta":  []byte("two"),
		"gamma": []byte("three"),
	}
	for key, value := range expect {
		if err := s.WriteEntry([]byte(key), testDataType, value); err != nil {
			t.Fatalf("Failed to write %s: %v", key, err)
		}
	}

	// Flip the global header's CRC byte behind the store's back
	dev.Corrupt(layout.GlobalHeaderSize-1, 0x01)

	s2 := reopen(t, dev)

	// Begin repaired via GC and every live entry survived the migration
	if s2.Collector().GCCount() == 0 {
		t.Error("expected a repair GC pass")
	}
	for key, want := range expect {
		value, _, err := s2.Get([]byte(key))
		if err != nil || !bytes.Equal(value, want) {
			t.Errorf("Get(%s) after repair = %q, %v; want %q", key, value, err, want)
		}
	}
	assertInvariants(t, s2)
}

func TestRecoveryFromStaleActivePointer(t *testing.T) {
	s, dev := newTestStore(t)

	if err := s.WriteEntry([]byte("sticky"), testDataType, []byte("data")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Simulate a crash after GC demoted the active block but before it
	// primed a new target: the global header points at a block that is no
	// longer active and still holds the live entry
	staleIndex := s.ActiveBlockIndex()
	if err := s.writeBlockHeader(staleIndex, &layout.BlockHeader{
		Status:        layout.BlockStatusValid,
		CurrentOffset: layout.BlockHeaderSize + 17, // header+key+value of "sticky"
	}); err != nil {
		t.Fatalf("Failed to demote block: %v", err)
	}

	s2 := reopen(t, dev)

	if s2.Collector().GCCount() == 0 {
		t.Error("expected a repair GC pass")
	}
	value, _, err := s2.Get([]byte("sticky"))
	if err != nil || !bytes.Equal(value, []byte("data")) {
		t.Errorf("Get after repair = %q, %v", value, err)
	}
	assertInvariants(t, s2)
}

func TestCrashBetweenTombstoneAndAppend(t *testing.T) {
	inner := newTestDevice(t)
	s, err := NewStore(testConfig(), inner)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	if err := s.WriteEntry([]byte("victim"), testDataType, []byte("old")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Reopen through a device that dies right after the one-byte tombstone
	faulty := device.NewFaultDevice(inner, 1)
	s2, err := NewStore(testConfig(), faulty)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s2.Begin(); err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}

	err = s2.WriteEntry([]byte("victim"), testDataType, []byte("new"))
	if !errors.Is(err, device.ErrPowerLoss) {
		t.Fatalf("expected power loss during replacement, got %v", err)
	}

	// Next boot: the old value is gone (the cost of tombstone-first
	// replacement) but the store itself is consistent
	s3 := reopen(t, inner)
	if ok, _ := s3.Has([]byte("victim")); ok {
		t.Error("tombstoned key resurrected after crash")
	}
	if _, _, err := s3.Get([]byte("victim")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get = %v, want ErrKeyNotFound", err)
	}
	assertInvariants(t, s3)

	// The store remains writable
	if err := s3.WriteEntry([]byte("victim"), testDataType, []byte("new")); err != nil {
		t.Fatalf("write after recovery failed: %v", err)
	}
}

func TestCrashDuringAppendLeaksNoEntry(t *testing.T) {
	inner := newTestDevice(t)
	s := reopen(t, inner)
	if err := s.WriteEntry([]byte("before"), testDataType, []byte("ok")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Allow the entry frame to land but cut power before the block header
	// bump: the tail bytes are leaked, never observed
	span := layout.EntryHeaderSize + 5 + 2
	faulty := device.NewFaultDevice(inner, int64(span))
	s2, err := NewStore(testConfig(), faulty)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s2.Begin(); err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}

	err = s2.WriteEntry([]byte("after"), testDataType, []byte("no"))
	if !errors.Is(err, device.ErrPowerLoss) {
		t.Fatalf("expected power loss during append, got %v", err)
	}

	s3 := reopen(t, inner)
	if ok, _ := s3.Has([]byte("after")); ok {
		t.Error("half-appended entry must not be visible")
	}
	value, _, err := s3.Get([]byte("before"))
	if err != nil || !bytes.Equal(value, []byte("ok")) {
		t.Errorf("pre-crash entry lost: %q, %v", value, err)
	}
	assertInvariants(t, s3)
}

func TestWalkerStopsAtCorruptLengths(t *testing.T) {
	s, dev := newTestStore(t)

	if err := s.WriteEntry([]byte("good"), testDataType, []byte("1")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := s.WriteEntry([]byte("bad"), testDataType, []byte("2")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Damage the second entry's key length beyond the configured maximum
	firstSpan := uint16(layout.EntryHeaderSize + 4 + 1)
	secondAddr := layout.BlockAddress(s.ActiveBlockIndex(), s.cfg.BlockSizeBytes) +
		layout.BlockHeaderSize + firstSpan
	dev.Corrupt(secondAddr+4, 0xF0) // key length field

	// The entry before the damage still resolves
	value, _, err := s.Get([]byte("good"))
	if err != nil || !bytes.Equal(value, []byte("1")) {
		t.Errorf("Get(good) = %q, %v", value, err)
	}

	// The damaged entry and everything after it are silently unreachable
	if _, _, err := s.Get([]byte("bad")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get(bad) = %v, want ErrKeyNotFound", err)
	}
}

func TestRecoveryFromCorruptBlockHeader(t *testing.T) {
	s, dev := newTestStore(t)

	if err := s.WriteEntry([]byte("k"), testDataType, []byte("v")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	// Damage the active block's header checksum: the global header now
	// points at an unreadable block
	addr := layout.BlockAddress(s.ActiveBlockIndex(), s.cfg.BlockSizeBytes)
	dev.Corrupt(addr+layout.BlockHeaderSize-1, 0x01)

	s2 := reopen(t, dev)

	// The damaged block was recycled, not reused in place; its contents
	// are gone but the store is consistent and writable
	if s2.Collector().GCCount() == 0 {
		t.Error("expected a repair GC pass")
	}
	assertInvariants(t, s2)
	if err := s2.WriteEntry([]byte("k2"), testDataType, []byte("v2")); err != nil {
		t.Fatalf("write after repair failed: %v", err)
	}
}

func TestRandomizedOperationsHoldInvariants(t *testing.T) {
	s, _ := newTestStore(t)
	rng := rand.New(rand.NewSource(0xF4A7))

	model := make(map[string][]byte)
	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("rk-%02d", i)
	}

	for op := 0; op < 800; op++ {
		key := keys[rng.Intn(len(keys))]

		switch rng.Intn(10) {
		case 0, 1, 2, 3, 4, 5: // put
			value := make([]byte, 1+rng.Intn(12))
			rng.Read(value)
			if err := s.WriteEntry([]byte(key), testDataType, value); err != nil {
				t.Fatalf("op %d: put %s failed: %v", op, key, err)
			}
			model[key] = value

		case 6, 7: // delete
			err := s.Delete([]byte(key))
			if _, exists := model[key]; exists {
				if err != nil {
					t.Fatalf("op %d: delete %s failed: %v", op, key, err)
				}
				delete(model, key)
			} else if !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("op %d: delete missing %s = %v", op, key, err)
			}

		default: // read
			value, _, err := s.Get([]byte(key))
			want, exists := model[key]
			if exists {
				if err != nil || !bytes.Equal(value, want) {
					t.Fatalf("op %d: get %s = %q, %v; want %q", op, key, value, err, want)
				}
			} else if !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("op %d: get missing %s = %v", op, key, err)
			}
		}

		if op%25 == 0 {
			assertInvariants(t, s)
		}
	}

	assertInvariants(t, s)

	// Final agreement between model and store
	for _, key := range keys {
		ok, err := s.Has([]byte(key))
		if err != nil {
			t.Fatalf("has %s failed: %v", key, err)
		}
		if _, exists := model[key]; exists != ok {
			t.Errorf("model/store disagree on %s: %v vs %v", key, exists, ok)
		}
	}
}

// The engine must format a device whose geometry disagrees with the stored
// global header rather than trust an out-of-range active index.
func TestBeginRepairsOutOfRangeActiveIndex(t *testing.T) {
	dev := newTestDevice(t)

	header := layout.NewGlobalHeader(64, 63) // geometry from some other part
	if err := dev.Write(0, header.Encode()); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	s, err := NewStore(testConfig(), dev)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin should repair, got %v", err)
	}
	assertInvariants(t, s)
}
