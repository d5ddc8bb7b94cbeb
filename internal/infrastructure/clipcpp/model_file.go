package clipcpp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DRSN-tech/clip-backend/pkg/e"
)

// Format — формат файла модели clip.cpp
type Format string

const (
	FormatGGUF Format = "gguf"
	FormatGGML Format = "ggml"
)

const (
	ggufMagic = "GGUF"
	ggmlMagic = 0x67676d6c
)

// FType — тип весов больших тензоров в заголовке ggml-модели
type FType int32

const (
	FTypeF32 FType = iota
	FTypeF16
	FTypeQ4_0
	FTypeQ4_1
)

var ftypeNames = map[FType]string{
	FTypeF32:  "f32",
	FTypeF16:  "f16",
	FTypeQ4_0: "q4_0",
	FTypeQ4_1: "q4_1",
}

func (f FType) String() string {
	if name, ok := ftypeNames[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int32(f))
}

// ggmlFTypeOffset: magic и семь int32 гиперпараметров vision-модели
const ggmlFTypeOffset = 4 + 7*4

// ModelFile — сведения о файле модели, прочитанные из заголовка
type ModelFile struct {
	Path    string
	Format  Format
	Version uint32 // только для GGUF
	FType   FType  // только для ggml
	Size    int64
}

// InspectModelFile проверяет, что файл существует и начинается с известной сигнатуры.
// Ошибки оборачивают e.ErrLoad.
func InspectModelFile(path string) (*ModelFile, error) {
	const op = "clipcpp.InspectModelFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err))
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err))
	}
	if st.IsDir() {
		return nil, e.Wrap(op, fmt.Errorf("%w: %s is a directory", e.ErrLoad, path))
	}

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, e.Wrap(op, fmt.Errorf("%w: %s is too short to be a model file", e.ErrLoad, path))
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrLoad, err))
	}

	mf := &ModelFile{Path: path, Size: st.Size()}
	switch {
	case string(header[:4]) == ggufMagic:
		mf.Format = FormatGGUF
		mf.Version = binary.LittleEndian.Uint32(header[4:])
	case binary.LittleEndian.Uint32(header[:4]) == ggmlMagic:
		mf.Format = FormatGGML
		if mf.FType, err = readGGMLFType(f, path); err != nil {
			return nil, e.Wrap(op, err)
		}
	default:
		return nil, e.Wrap(op, fmt.Errorf("%w: %s has unknown magic %x", e.ErrLoad, path, header[:4]))
	}

	return mf, nil
}

// readGGMLFType читает ftype после гиперпараметров vision-модели.
func readGGMLFType(f *os.File, path string) (FType, error) {
	var buf [4]byte
	if _, err := f.ReadAt(buf[:], ggmlFTypeOffset); err != nil {
		return 0, fmt.Errorf("%w: %s: truncated ggml header: %w", e.ErrLoad, path, err)
	}

	ft := FType(int32(binary.LittleEndian.Uint32(buf[:])))
	if _, ok := ftypeNames[ft]; !ok {
		return 0, fmt.Errorf("%w: %s has bad ftype value %d", e.ErrLoad, path, int32(ft))
	}

	return ft, nil
}
