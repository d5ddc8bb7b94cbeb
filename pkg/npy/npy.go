// Package npy пишет матрицы float32 в формате NumPy .npy версии 1.0.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
)

const (
	magic      = "\x93NUMPY"
	headerSize = 128 // magic + версия + длина + словарь, выровнено пробелами
	prefixSize = 10
)

// WriteMatrix пишет rows как массив '<f4' формы (len(rows), dim).
// Все строки должны иметь одинаковую длину.
func WriteMatrix(w io.Writer, rows [][]float32) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return fmt.Errorf("npy: empty matrix")
	}

	dim := len(rows[0])
	for i, row := range rows {
		if len(row) != dim {
			return fmt.Errorf("npy: row %d has %d values, expected %d", i, len(row), dim)
		}
	}

	header, err := buildHeader(len(rows), dim)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(header); err != nil {
		return err
	}

	var buf [4]byte
	for _, row := range rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// WriteFile пишет один вектор формы (1, dim) в файл path.
func WriteFile(path string, vector []float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return WriteMatrix(f, [][]float32{vector})
}

var shapeRe = regexp.MustCompile(`'shape':\s*\((\d+),\s*(\d+)\)`)

// ReadMatrix читает двумерный массив '<f4' в C-порядке.
func ReadMatrix(r io.Reader) ([][]float32, error) {
	br := bufio.NewReader(r)

	prefix := make([]byte, prefixSize)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("npy: read prefix: %w", err)
	}
	if string(prefix[:6]) != magic || prefix[6] != 1 {
		return nil, fmt.Errorf("npy: unsupported file, expected format version 1.x")
	}

	dict := make([]byte, binary.LittleEndian.Uint16(prefix[8:10]))
	if _, err := io.ReadFull(br, dict); err != nil {
		return nil, fmt.Errorf("npy: read header: %w", err)
	}
	if !bytes.Contains(dict, []byte("'descr': '<f4'")) || !bytes.Contains(dict, []byte("'fortran_order': False")) {
		return nil, fmt.Errorf("npy: only little-endian float32 in C order is supported")
	}

	m := shapeRe.FindSubmatch(dict)
	if m == nil {
		return nil, fmt.Errorf("npy: only 2-dimensional arrays are supported")
	}
	rows, _ := strconv.Atoi(string(m[1]))
	cols, _ := strconv.Atoi(string(m[2]))

	out := make([][]float32, rows)
	var buf [4]byte
	for i := range out {
		out[i] = make([]float32, cols)
		for j := range out[i] {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("npy: read data: %w", err)
			}
			out[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
		}
	}

	return out, nil
}

// ReadVector читает файл формы (1, dim), записанный WriteFile.
func ReadVector(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("%s: expected a single vector, got %d rows", path, len(rows))
	}

	return rows[0], nil
}

func buildHeader(rows, cols int) ([]byte, error) {
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)

	padding := headerSize - prefixSize - len(dict) - 1
	if padding < 0 {
		return nil, fmt.Errorf("npy: shape (%d, %d) does not fit into header", rows, cols)
	}

	out := make([]byte, 0, headerSize)
	out = append(out, magic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(headerSize-prefixSize))
	out = append(out, dict...)
	for range padding {
		out = append(out, ' ')
	}
	out = append(out, '\n')

	return out, nil
}
