package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrCorruptIndex indicates a serialized index could not be decoded.
var ErrCorruptIndex = errors.New("corrupt index file")

var flatMagic = [4]byte{'S', 'D', 'I', 'X'}

const flatVersion uint32 = 1

// WriteTo serializes the index to w.
//
// Format:
//
//	[4B magic "SDIX"] [4B version]
//	[4B dim] [4B count]
//	[count × dim × 4B float32]
//
// All integers and floats are little endian.
func (f *FlatL2) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	var written int64

	if _, err := bw.Write(flatMagic[:]); err != nil {
		return written, fmt.Errorf("index: write magic: %w", err)
	}
	written += int64(len(flatMagic))

	header := []uint32{flatVersion, uint32(f.dim), uint32(f.Count())}
	for _, v := range header {
		if err := binary.Write(bw, le, v); err != nil {
			return written, fmt.Errorf("index: write header: %w", err)
		}
		written += 4
	}

	buf := make([]byte, 4)
	for _, v := range f.data {
		le.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return written, fmt.Errorf("index: write vectors: %w", err)
		}
		written += 4
	}

	if err := bw.Flush(); err != nil {
		return written, fmt.Errorf("index: flush: %w", err)
	}
	return written, nil
}

// ReadFlatL2 deserializes an index written by WriteTo.
func ReadFlatL2(r io.Reader) (*FlatL2, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian
	read := func(v any) error { return binary.Read(br, le, v) }

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrCorruptIndex, err)
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorruptIndex, magic[:])
	}

	var version, dim, count uint32
	if err := read(&version); err != nil {
		return nil, fmt.Errorf("%w: read version: %w", ErrCorruptIndex, err)
	}
	if version != flatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (want %d)", ErrCorruptIndex, version, flatVersion)
	}
	if err := read(&dim); err != nil {
		return nil, fmt.Errorf("%w: read dimension: %w", ErrCorruptIndex, err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: dimension 0", ErrCorruptIndex)
	}
	if err := read(&count); err != nil {
		return nil, fmt.Errorf("%w: read count: %w", ErrCorruptIndex, err)
	}

	data := make([]float32, int(dim)*int(count))
	buf := make([]byte, 4)
	for i := range data {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: read vectors: %w", ErrCorruptIndex, err)
		}
		data[i] = math.Float32frombits(le.Uint32(buf))
	}

	return &FlatL2{dim: int(dim), data: data}, nil
}
