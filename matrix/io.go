package matrix

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Load reads a matrix from path. The extension selects the format: ".bin"
// is the binary format of WriteBinary (memory-mapped), ".gz" wraps CSV in
// gzip, anything else is plain CSV with one point per line.
func Load(path string) (*Dense, error) {
	if strings.HasSuffix(path, ".bin") {
		return OpenBinary(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("matrix: %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	x, err := ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("matrix: %s: %w", path, err)
	}
	return x, nil
}

// Save writes a matrix to path, dispatching on the extension like Load.
func Save(path string, x *Dense) error {
	if strings.HasSuffix(path, ".bin") {
		return SaveBinary(path, x)
	}
	return saveText(path, func(w io.Writer) error { return WriteCSV(w, x) })
}

// SaveInts writes an int matrix to path as CSV, gzip-compressed for ".gz".
func SaveInts(path string, x *Ints) error {
	return saveText(path, func(w io.Writer) error { return WriteIntsCSV(w, x) })
}

func saveText(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("matrix: %w", err)
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}

	if err := write(w); err != nil {
		f.Close()
		return fmt.Errorf("matrix: %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("matrix: %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("matrix: %s: %w", path, err)
	}
	return nil
}

// ReadCSV parses one row per line, comma-separated. Every line must carry
// the same number of fields.
func ReadCSV(r io.Reader) (*Dense, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	var rows [][]float64
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]float64, len(rec))
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, field %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return FromRows(rows)
}

// WriteCSV writes one row per line with shortest round-trip float encoding.
func WriteCSV(w io.Writer, x *Dense) error {
	cw := csv.NewWriter(w)
	fields := make([]string, x.Cols())
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		for j, v := range row {
			fields[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadIntsCSV parses an int matrix, one row per line.
func ReadIntsCSV(r io.Reader) (*Ints, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	var rows [][]int
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make([]int, len(rec))
		for i, field := range rec {
			v, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("line %d, field %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("matrix: no rows")
	}

	out := NewInts(len(rows), len(rows[0]))
	for i, r := range rows {
		copy(out.Row(i), r)
	}
	return out, nil
}

// WriteIntsCSV writes one row per line.
func WriteIntsCSV(w io.Writer, x *Ints) error {
	cw := csv.NewWriter(w)
	fields := make([]string, x.Cols())
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		for j, v := range row {
			fields[j] = strconv.Itoa(v)
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
