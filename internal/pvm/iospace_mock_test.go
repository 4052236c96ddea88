package pvm_test

import (
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/smoynes/poke/internal/pvm"
)

// TestIOSpaceRegistryUsesCollaboratorInterface exercises IOSpaceRegistry against a
// gomock double of IOSpace rather than the in-memory implementation, so the
// assertions are about the interface contract the registry relies on (spec §6.1:
// ios_open, ios_cur, ios_search, ReadBits/WriteBits delegation) and not about
// iospace_mem.go's own bookkeeping.
func TestIOSpaceRegistryUsesCollaboratorInterface(t *testing.T) {
	ctrl := gomock.NewController(t)

	sp := NewMockIOSpace(ctrl)
	sp.EXPECT().ID().Return(int32(1)).AnyTimes()
	sp.EXPECT().Handler().Return("mem://scratch").AnyTimes()

	reg := pvm.NewIOSpaceRegistry()
	id := reg.Open(sp, true)

	if got, want := id, int32(1); got != want {
		t.Fatalf("Open id = %d, want %d", got, want)
	}
	if got, want := reg.Cur(), int32(1); got != want {
		t.Errorf("Cur() = %d, want %d", got, want)
	}

	found, ok := reg.Search("mem://scratch")
	if !ok {
		t.Fatalf("Search did not find registered space")
	}
	if found != sp {
		t.Errorf("Search returned a different IOSpace than was registered")
	}

	sp.EXPECT().WriteBits(uint64(0), uint(8), uint64(0x2a), pvm.BigEndian).Return(nil)
	if err := found.WriteBits(0, 8, 0x2a, pvm.BigEndian); err != nil {
		t.Errorf("WriteBits: %s", err)
	}

	sp.EXPECT().ReadBits(uint64(0), uint(8), pvm.BigEndian).Return(uint64(0x2a), nil)
	v, err := found.ReadBits(0, 8, pvm.BigEndian)
	if err != nil {
		t.Fatalf("ReadBits: %s", err)
	}
	if got, want := v, uint64(0x2a); got != want {
		t.Errorf("ReadBits = %#x, want %#x", got, want)
	}

	sp.EXPECT().Close().Return(nil)
	if err := reg.Close(1); err != nil {
		t.Errorf("Close: %s", err)
	}

	if _, err := reg.Get(1); err == nil {
		t.Errorf("expected error getting a closed space")
	}
}
