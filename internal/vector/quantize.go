package vector

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// payload is the serialized index: chunks in order, matrix shapes, and each
// matrix framed as "<scale>;<base64 zlib int16 data>".
type payload struct {
	Chunks         []string `json:"chunks"`
	Shape          [2]int   `json:"shape"`
	Vectors        string   `json:"vectors"`
	TransformShape [2]int   `json:"transform_shape,omitempty"`
	Transform      string   `json:"transform,omitempty"`
}

// Marshal serializes the index with int16 quantization and zlib compression.
func (x *Index) Marshal() ([]byte, error) {
	if x.Vectors == nil {
		return nil, fmt.Errorf("marshal before index was built")
	}
	n, d := x.Vectors.Dims()
	p := payload{
		Chunks:  x.Chunks,
		Shape:   [2]int{n, d},
		Vectors: frameMatrix(x.Vectors),
	}
	if x.Transform != nil {
		tn, td := x.Transform.Dims()
		p.TransformShape = [2]int{tn, td}
		p.Transform = frameMatrix(x.Transform)
	}
	return json.Marshal(p)
}

// Unmarshal reconstructs an index from its serialized form.
func Unmarshal(data []byte) (*Index, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal index: %w", err)
	}
	vectors, err := unframeMatrix(p.Vectors, p.Shape[0], p.Shape[1])
	if err != nil {
		return nil, fmt.Errorf("unframe vectors: %w", err)
	}
	if len(p.Chunks) != p.Shape[0] {
		return nil, fmt.Errorf("index has %d chunks but %d vector rows", len(p.Chunks), p.Shape[0])
	}
	idx := &Index{Chunks: p.Chunks, Vectors: vectors}
	if p.Transform != "" {
		transform, err := unframeMatrix(p.Transform, p.TransformShape[0], p.TransformShape[1])
		if err != nil {
			return nil, fmt.Errorf("unframe transform: %w", err)
		}
		idx.Transform = transform
	}
	return idx, nil
}

// Quantize scales values to use the full int16 range. The scale has a floor
// of 1 so an all-zero array does not divide by zero.
func Quantize(values []float64) (scale float64, quantized []int16) {
	maxAbs := 0.0
	for _, v := range values {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	scale = 1.0
	if maxAbs > 0 {
		scale = math.MaxInt16 / maxAbs
	}
	if scale < 1 {
		scale = 1
	}

	quantized = make([]int16, len(values))
	for i, v := range values {
		q := math.Round(v * scale)
		if q > math.MaxInt16 {
			q = math.MaxInt16
		} else if q < math.MinInt16 {
			q = math.MinInt16
		}
		quantized[i] = int16(q)
	}
	return scale, quantized
}

// Dequantize reverses Quantize up to one quantization step of error.
func Dequantize(scale float64, quantized []int16) []float64 {
	values := make([]float64, len(quantized))
	for i, q := range quantized {
		values[i] = float64(q) / scale
	}
	return values
}

// frameMatrix quantizes, byte-packs, compresses, and frames a matrix as
// "<scale>;<compressed bytes as text>".
func frameMatrix(m *mat.Dense) string {
	rows, cols := m.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		values = append(values, m.RawRowView(i)...)
	}
	scale, quantized := Quantize(values)

	packed := make([]byte, 2*len(quantized))
	for i, q := range quantized {
		binary.LittleEndian.PutUint16(packed[2*i:], uint16(q))
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(packed)
	zw.Close()

	return strconv.FormatFloat(scale, 'g', -1, 64) + ";" +
		base64.StdEncoding.EncodeToString(buf.Bytes())
}

// unframeMatrix reverses frameMatrix and reshapes to (rows, cols).
func unframeMatrix(framed string, rows, cols int) (*mat.Dense, error) {
	scaleStr, data, ok := strings.Cut(framed, ";")
	if !ok {
		return nil, fmt.Errorf("malformed frame: no scale separator")
	}
	scale, err := strconv.ParseFloat(scaleStr, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed scale %q: %w", scaleStr, err)
	}

	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress frame: %w", err)
	}
	packed, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, fmt.Errorf("decompress frame: %w", err)
	}
	if len(packed) != 2*rows*cols {
		return nil, fmt.Errorf("frame holds %d bytes, expected %d", len(packed), 2*rows*cols)
	}

	quantized := make([]int16, rows*cols)
	for i := range quantized {
		quantized[i] = int16(binary.LittleEndian.Uint16(packed[2*i:]))
	}
	return mat.NewDense(rows, cols, Dequantize(scale, quantized)), nil
}
