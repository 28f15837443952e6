package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"
)

// BinaryWriter writes matrices and trees in the binary file format.
type BinaryWriter struct {
	w         io.Writer
	byteOrder binary.ByteOrder
}

// NewBinaryWriter creates a new binary writer.
func NewBinaryWriter(w io.Writer) *BinaryWriter {
	return &BinaryWriter{
		w:         w,
		byteOrder: binary.LittleEndian, // Native on x86/ARM
	}
}

// WriteHeader writes the file header.
func (bw *BinaryWriter) WriteHeader(header *FileHeader) error {
	header.Magic = MagicNumber
	header.Version = Version
	return binary.Write(bw.w, bw.byteOrder, header)
}

// WriteUint64 writes a single uint64.
func (bw *BinaryWriter) WriteUint64(v uint64) error {
	return binary.Write(bw.w, bw.byteOrder, v)
}

// WriteFloat64Slice writes a float64 slice as raw bytes.
// Safety: validates alignment before the unsafe conversion.
func (bw *BinaryWriter) WriteFloat64Slice(vals []float64) error {
	if len(vals) == 0 {
		return nil
	}
	if err := validateFloat64SliceAlignment(vals); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*8)
	_, err := bw.w.Write(byteSlice)
	return err
}

// WriteInt32Slice writes an int32 slice as raw bytes.
// Safety: validates alignment before the unsafe conversion.
func (bw *BinaryWriter) WriteInt32Slice(vals []int32) error {
	if len(vals) == 0 {
		return nil
	}
	if err := validateInt32SliceAlignment(vals); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// WriteUint64Slice writes a uint64 slice as raw bytes.
// Safety: validates alignment before the unsafe conversion.
func (bw *BinaryWriter) WriteUint64Slice(vals []uint64) error {
	if len(vals) == 0 {
		return nil
	}
	if err := validateUint64SliceAlignment(vals); err != nil {
		return err
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*8)
	_, err := bw.w.Write(byteSlice)
	return err
}

// BinaryReader reads matrices and trees from the binary file format.
type BinaryReader struct {
	r         io.Reader
	byteOrder binary.ByteOrder
}

// NewBinaryReader creates a new binary reader.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{
		r:         r,
		byteOrder: binary.LittleEndian,
	}
}

// ReadHeader reads and validates the file header.
func (br *BinaryReader) ReadHeader() (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(br.r, br.byteOrder, &header); err != nil {
		return nil, err
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	return &header, nil
}

// ReadUint64 reads a single uint64.
func (br *BinaryReader) ReadUint64() (uint64, error) {
	var v uint64
	if err := binary.Read(br.r, br.byteOrder, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadFloat64Slice reads count float64 values.
func (br *BinaryReader) ReadFloat64Slice(count int) ([]float64, error) {
	if count == 0 {
		return nil, nil
	}
	vals := make([]float64, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), count*8)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vals, nil
}

// ReadFloat64SliceInto fills vals from the stream.
func (br *BinaryReader) ReadFloat64SliceInto(vals []float64) error {
	if len(vals) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*8)
	_, err := io.ReadFull(br.r, byteSlice)
	return err
}

// ReadInt32Slice reads count int32 values.
func (br *BinaryReader) ReadInt32Slice(count int) ([]int32, error) {
	if count == 0 {
		return nil, nil
	}
	vals := make([]int32, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), count*4)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vals, nil
}

// ReadUint64Slice reads count uint64 values.
func (br *BinaryReader) ReadUint64Slice(count int) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	vals := make([]uint64, count)
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), count*8)
	if _, err := io.ReadFull(br.r, byteSlice); err != nil {
		return nil, err
	}
	return vals, nil
}

// SaveToFile writes a file atomically: the payload goes to a temp file in
// the target directory which is then renamed over the destination.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile reads a file through a buffered reader.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}
