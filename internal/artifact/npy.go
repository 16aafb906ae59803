package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

// encodeNPY renders a 1-D or 2-D float64 array in the minimal NPY v1.0
// format (little-endian '<f8'). No third-party NPY encoder exists in the
// pack's dependency surface, so this is hand-rolled stdlib binary.Write —
// one of the standard-library exceptions documented in DESIGN.md.
func encodeNPY1D(data []float64) ([]byte, error) {
	return encodeNPY(data, []int{len(data)})
}

func encodeNPY2D(data [][]float64) ([]byte, error) {
	if len(data) == 0 {
		return encodeNPY(nil, []int{0, 0})
	}
	flat := make([]float64, 0, len(data)*len(data[0]))
	for _, row := range data {
		flat = append(flat, row...)
	}
	return encodeNPY(flat, []int{len(data), len(data[0])})
}

func encodeNPY(flat []float64, shape []int) ([]byte, error) {
	shapeStr := ""
	for i, s := range shape {
		if i > 0 {
			shapeStr += ", "
		}
		shapeStr += fmt.Sprintf("%d", s)
	}
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s)}", shapeStr)

	// Pad header so that len(magic+ver+headerlen+header) is a multiple of 64.
	const prefixLen = 10 // magic(6) + version(2) + headerlen(2)
	pad := 64 - (prefixLen+len(header)+1)%64
	header += string(bytes.Repeat([]byte{' '}, pad)) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.WriteByte(1)
	buf.WriteByte(0)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(header))); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "write npy header length", err)
	}
	buf.WriteString(header)
	for _, v := range flat {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "write npy payload", err)
		}
	}
	return buf.Bytes(), nil
}
