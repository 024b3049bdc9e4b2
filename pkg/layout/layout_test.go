package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeZeroMethod(t *testing.T) {
	f := Compute(0, 0, 0)
	if f.CallFrameSize != CallFrameHeaderSize {
		t.Errorf("CallFrameSize = %d", f.CallFrameSize)
	}
	if f.VariablesSize != VariablesHeaderSize {
		t.Errorf("VariablesSize = %d", f.VariablesSize)
	}
	if f.CallFrameOffset != -120 {
		t.Errorf("CallFrameOffset = %d, want -120", f.CallFrameOffset)
	}
	if f.VariablesOffset != -168 || f.SpillOffset != -200 {
		t.Errorf("VariablesOffset = %d, SpillOffset = %d", f.VariablesOffset, f.SpillOffset)
	}
	if f.Size != 200 || f.Reserve != 184 {
		t.Errorf("Size = %d, Reserve = %d", f.Size, f.Reserve)
	}
}

func TestComputeDeterministic(t *testing.T) {
	for a := 0; a < 4; a++ {
		for l := 0; l < 6; l++ {
			for s := 0; s < 6; s++ {
				if diff := cmp.Diff(Compute(a, l, s), Compute(a, l, s)); diff != "" {
					t.Fatalf("Compute(%d, %d, %d) not deterministic:\n%s", a, l, s, diff)
				}
			}
		}
	}
}

func TestComputeMonotonic(t *testing.T) {
	for l := 0; l < 10; l++ {
		for s := 0; s < 10; s++ {
			f := Compute(1, l, s)
			if g := Compute(1, l+1, s); g.VariablesSize <= f.VariablesSize || g.Size < f.Size {
				t.Errorf("locals %d -> %d shrank the frame", l, l+1)
			}
			if g := Compute(1, l, s+1); g.CallFrameSize <= f.CallFrameSize || g.Size < f.Size {
				t.Errorf("stack %d -> %d shrank the frame", s, s+1)
			}
			if g := Compute(2, l, s); g.Size < f.Size {
				t.Errorf("required args 1 -> 2 shrank the frame")
			}
		}
	}
}

func TestRegionsAreContiguous(t *testing.T) {
	f := Compute(2, 3, 5)
	if f.CallFrameOffset+f.CallFrameSize != -SavedAreaSize {
		t.Error("call frame does not end at the saved area")
	}
	if f.VariablesOffset+f.VariablesSize != f.CallFrameOffset {
		t.Error("variables do not end at the call frame")
	}
	if f.SpillOffset+SpillSize != f.VariablesOffset {
		t.Error("spill slots do not end at the variables")
	}
	if f.StackSlot(4)+PointerSize != -SavedAreaSize {
		t.Error("top stack slot is not the last word of the call frame")
	}
	if f.Local(2)+PointerSize != f.CallFrameOffset {
		t.Error("last local is not the last word of the variables region")
	}
	if f.StackBase() != f.CallFrame(CallFrameJITData) {
		t.Error("empty stack pointer should alias the last header word")
	}
}

func TestCallSitesAligned(t *testing.T) {
	for l := 0; l < 8; l++ {
		for s := 0; s < 8; s++ {
			f := Compute(0, l, s)
			if f.Total()%StackAlign != 0 {
				t.Errorf("Compute(0, %d, %d): total %d not aligned", l, s, f.Total())
			}
			if f.Total() < f.Size {
				t.Errorf("Compute(0, %d, %d): reserve %d does not cover size %d", l, s, f.Reserve, f.Size)
			}
		}
	}
}
