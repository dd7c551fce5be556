package sampling

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Minimal NumPy .npy/.npz support for float32 arrays: enough to
// round-trip what numpy.savez writes for one positional argument (a
// zip archive holding a single C-ordered "arr_0.npy" member).

const npyMagic = "\x93NUMPY"

// WriteNPZ stores the grid at path as a .npz archive.
func WriteNPZ(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("arr_0.npy")
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to add arr_0.npy")
	}
	if err := writeNPY(w, g); err != nil {
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to finish %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

func writeNPY(w io.Writer, g *Grid) error {
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d, %d, %d), }",
		g.N, g.Height, g.Width, g.Channels)
	// Pad so the data section starts 64-byte aligned; the header is
	// newline-terminated per the format spec.
	total := len(npyMagic) + 4 + len(header) + 1
	header += strings.Repeat(" ", (64-total%64)%64) + "\n"

	if _, err := io.WriteString(w, npyMagic); err != nil {
		return errors.Wrap(err, "failed to write npy magic")
	}
	// Format version 1.0, then the little-endian header length.
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return errors.Wrap(err, "failed to write npy version")
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return errors.Wrap(err, "failed to write npy header length")
	}
	if _, err := io.WriteString(w, header); err != nil {
		return errors.Wrap(err, "failed to write npy header")
	}
	return errors.Wrap(binary.Write(w, binary.LittleEndian, g.Data), "failed to write npy data")
}

// ReadNPZ loads the first .npy member of the archive at path.
func ReadNPZ(path string) (*Grid, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer r.Close()

	for _, entry := range r.File {
		if !strings.HasSuffix(entry.Name, ".npy") {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %s in %s", entry.Name, path)
		}
		g, err := readNPY(rc)
		_ = rc.Close()
		return g, errors.Wrapf(err, "while reading %s", path)
	}
	return nil, errors.Errorf("no npy member found in %s", path)
}

func readNPY(r io.Reader) (*Grid, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, errors.Wrap(err, "failed to read npy preamble")
	}
	if string(head[:6]) != npyMagic {
		return nil, errors.New("not an npy stream")
	}
	if head[6] != 1 {
		return nil, errors.Errorf("unsupported npy format version %d.%d", head[6], head[7])
	}
	var hlen uint16
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return nil, errors.Wrap(err, "failed to read npy header length")
	}
	buf := make([]byte, hlen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "failed to read npy header")
	}
	header := string(buf)

	if !strings.Contains(header, "'descr': '<f4'") {
		return nil, errors.Errorf("unsupported npy dtype in header %q", strings.TrimSpace(header))
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil, errors.New("fortran-ordered npy arrays are not supported")
	}
	dims, err := parseShape(header)
	if err != nil {
		return nil, err
	}
	if len(dims) != 4 {
		return nil, errors.Errorf("expected a (samples, height, width, channels) array, got %d dimensions", len(dims))
	}

	g := &Grid{N: dims[0], Height: dims[1], Width: dims[2], Channels: dims[3]}
	g.Data = make([]float32, dims[0]*dims[1]*dims[2]*dims[3])
	return g, errors.Wrap(binary.Read(r, binary.LittleEndian, g.Data), "failed to read npy data")
}

func parseShape(header string) ([]int, error) {
	open := strings.Index(header, "(")
	close := strings.Index(header, ")")
	if open < 0 || close < open {
		return nil, errors.Errorf("no shape tuple in npy header %q", strings.TrimSpace(header))
	}
	var dims []int
	for _, part := range strings.Split(header[open+1:close], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "bad shape in npy header %q", strings.TrimSpace(header))
		}
		dims = append(dims, v)
	}
	return dims, nil
}
