package sampling

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testGrid(n, h, w, c int) *Grid {
	g := &Grid{N: n, Height: h, Width: w, Channels: c}
	g.Data = make([]float32, n*h*w*c)
	for i := range g.Data {
		g.Data[i] = float32(i)/float32(len(g.Data)) - 0.5
	}
	return g
}

func TestNPZRoundTrip(t *testing.T) {
	g := testGrid(2, 4, 3, 1)
	path := filepath.Join(t.TempDir(), "samples_2x4x3x1.npz")

	if err := WriteNPZ(path, g); err != nil {
		t.Fatalf("WriteNPZ failed: %v", err)
	}
	got, err := ReadNPZ(path)
	if err != nil {
		t.Fatalf("ReadNPZ failed: %v", err)
	}
	if got.N != 2 || got.Height != 4 || got.Width != 3 || got.Channels != 1 {
		t.Fatalf("unexpected dims: %+v", got)
	}
	if !reflect.DeepEqual(got.Data, g.Data) {
		t.Fatal("data does not round trip")
	}
}

func TestReadNPZRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.npz")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := ReadNPZ(path); err == nil {
		t.Fatal("expected an error for a non-archive file")
	}
}

func TestGridSlice(t *testing.T) {
	g := testGrid(3, 2, 2, 1)
	s := g.Slice(1)
	if len(s) != 4 {
		t.Fatalf("unexpected slice length %d", len(s))
	}
	if s[0] != g.Data[4] {
		t.Fatalf("slice does not start at the second sample: %f vs %f", s[0], g.Data[4])
	}
}
