package intercept

import (
	"testing"
)

func TestLength(t *testing.T) {
	abc, err := NewVector([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}

	tests := []struct {
		name string
		v    []*byte
		want int
	}{
		{"empty, terminator first", []*byte{nil}, 0},
		{"three entries", abc, 3},
		{"no terminator", abc[:3], 3},
		{"nil slice", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Length(tt.v); got != tt.want {
				t.Errorf("Length = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLengthIgnoresMemoryPastTerminator(t *testing.T) {
	v, err := NewVector([]string{"a", "b"})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	// Entries beyond the terminator must not count, whatever they hold.
	junk := v[0]
	padded := append(append([]*byte{}, v...), junk, junk)
	if got := Length(padded); got != 2 {
		t.Errorf("Length = %d, want 2 regardless of trailing entries", got)
	}
}

func TestCopyTerminated(t *testing.T) {
	src, err := NewVector([]string{"cc", "-c", "main.c"})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	dst := make([]*byte, 6)

	rest := CopyTerminated(dst, src)

	for i := 0; i < 3; i++ {
		if dst[i] != src[i] {
			t.Errorf("dst[%d] = %p, want the source pointer %p", i, dst[i], src[i])
		}
	}
	if dst[3] != nil {
		t.Error("terminator missing after copied entries")
	}
	if len(rest) != 2 {
		t.Errorf("returned tail has %d slots, want 2: the cursor sits past the terminator", len(rest))
	}
	if &rest[0] != &dst[4] {
		t.Error("returned tail does not alias the destination past the terminator")
	}
}

func TestCopyTerminatedExactFit(t *testing.T) {
	src, err := NewVector([]string{"x"})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	dst := make([]*byte, 2)
	rest := CopyTerminated(dst, src)
	if len(rest) != 0 {
		t.Errorf("tail has %d slots, want 0 for an exact fit", len(rest))
	}
	if dst[1] != nil {
		t.Error("terminator missing")
	}
}

func TestCopyTerminatedEmptySource(t *testing.T) {
	dst := make([]*byte, 1)
	rest := CopyTerminated(dst, []*byte{nil})
	if dst[0] != nil {
		t.Error("empty source should still write a terminator")
	}
	if len(rest) != 0 {
		t.Errorf("tail has %d slots, want 0", len(rest))
	}
}

func TestCopyTerminatedPanicsWhenTooSmall(t *testing.T) {
	src, err := NewVector([]string{"a", "b"})
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a destination without terminator room")
		}
	}()
	CopyTerminated(make([]*byte, 2), src)
}

func TestNewVectorRejectsEmbeddedNUL(t *testing.T) {
	if _, err := NewVector([]string{"oops\x00oops"}); err == nil {
		t.Error("expected an error for an embedded NUL byte")
	}
}

func TestStringsRoundTrip(t *testing.T) {
	in := []string{"cc", "-o", "out", "main.c"}
	v, err := NewVector(in)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	out := Strings(v)
	if len(out) != len(in) {
		t.Fatalf("Strings returned %d entries, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("entry %d = %q, want %q", i, out[i], in[i])
		}
	}
}
