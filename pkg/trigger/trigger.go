// Package trigger decodes the camera's packed trigger arrays into
// per-patch traces in logical patch order, and encodes them back.
//
// Two families exist. Output patches (patch7, patch19) pack one bit per
// patch and sample, least significant bit first, Fibers bytes per board.
// Input traces carry one byte per patch and sample in InputColumns columns
// per board, of which only the first PatchesPerGroup are meaningful.
//
// Encoding input traces writes zero into the padding columns, so
// EncodeInput(DecodeInput(x)) equals x only when x's padding was zero.
package trigger

import (
	"github.com/ajitpratap0/zfits/pkg/errors"
)

// Matrix is a row-major Rows x Cols byte matrix. Rows are patches, columns
// are samples.
type Matrix struct {
	Rows int
	Cols int
	Data []uint8
}

// NewMatrix allocates a zero matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// At returns the element at row i, column j.
func (m Matrix) At(i, j int) uint8 {
	return m.Data[i*m.Cols+j]
}

// Set stores v at row i, column j.
func (m Matrix) Set(i, j int, v uint8) {
	m.Data[i*m.Cols+j] = v
}

// Row returns row i, sharing storage with m.
func (m Matrix) Row(i int) []uint8 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Transform applies a Layout. Build it once from configuration and pass it
// to every decoder that needs it; it is immutable and safe to share.
type Transform struct {
	layout        Layout
	outputInverse []int
	inputInverse  []int
}

// New validates l and prepares its inverses.
func New(l Layout) (*Transform, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Transform{
		layout:        l,
		outputInverse: inverse(l.Output),
		inputInverse:  inverse(l.Input),
	}, nil
}

// Default returns a Transform over DefaultLayout.
func Default() *Transform {
	t, err := New(DefaultLayout())
	if err != nil {
		panic(err)
	}
	return t
}

// Layout returns the layout the transform was built from.
func (t *Transform) Layout() Layout {
	return t.layout
}

// OutputRow returns the logical row holding hardware output patch hw.
func (t *Transform) OutputRow(hw int) int {
	return t.outputInverse[hw]
}

// InputRow returns the logical row holding hardware input patch hw.
func (t *Transform) InputRow(hw int) int {
	return t.inputInverse[hw]
}

// DecodeOutput unpacks an output-patch array into a Patches x samples
// matrix of 0/1 values.
func (t *Transform) DecodeOutput(packed []uint8) (Matrix, error) {
	if len(packed)%outputFrame != 0 {
		return Matrix{}, errors.Newf(errors.ErrorTypeInvalidShape,
			"output patch array of %d bytes is not a multiple of %d", len(packed), outputFrame)
	}
	samples := len(packed) / outputFrame
	m := NewMatrix(Patches, samples)

	for s := 0; s < samples; s++ {
		frame := packed[s*outputFrame : (s+1)*outputFrame]
		for k, b := range frame {
			if b == 0 {
				continue
			}
			base := (k/Fibers)*PatchesPerGroup + (k%Fibers)*8
			for bit := 0; bit < 8; bit++ {
				if b&(1<<bit) != 0 {
					m.Set(t.outputInverse[base+bit], s, 1)
				}
			}
		}
	}
	return m, nil
}

// EncodeOutput packs a Patches x samples 0/1 matrix back into the
// output-patch byte layout.
func (t *Transform) EncodeOutput(m Matrix) ([]uint8, error) {
	if err := checkMatrix(m); err != nil {
		return nil, err
	}
	packed := make([]uint8, m.Cols*outputFrame)

	for i := 0; i < Patches; i++ {
		hw := t.layout.Output[i]
		k := (hw/PatchesPerGroup)*Fibers + (hw%PatchesPerGroup)/8
		bit := uint(hw % 8)
		for s, v := range m.Row(i) {
			switch v {
			case 0:
			case 1:
				packed[s*outputFrame+k] |= 1 << bit
			default:
				return nil, errors.Newf(errors.ErrorTypeInvalidShape,
					"output patch value %d at row %d sample %d is not a bit", v, i, s)
			}
		}
	}
	return packed, nil
}

// DecodeInput drops the padding columns of an input-trace array and returns
// a Patches x samples matrix.
func (t *Transform) DecodeInput(traces []uint8) (Matrix, error) {
	if len(traces)%inputFrame != 0 {
		return Matrix{}, errors.Newf(errors.ErrorTypeInvalidShape,
			"input trace array of %d bytes is not a multiple of %d", len(traces), inputFrame)
	}
	samples := len(traces) / inputFrame
	m := NewMatrix(Patches, samples)

	for s := 0; s < samples; s++ {
		frame := traces[s*inputFrame : (s+1)*inputFrame]
		for g := 0; g < Groups; g++ {
			cols := frame[g*InputColumns : g*InputColumns+PatchesPerGroup]
			for c, v := range cols {
				m.Set(t.inputInverse[g*PatchesPerGroup+c], s, v)
			}
		}
	}
	return m, nil
}

// EncodeInput lays a Patches x samples matrix out as an input-trace array
// with zero padding columns.
func (t *Transform) EncodeInput(m Matrix) ([]uint8, error) {
	if err := checkMatrix(m); err != nil {
		return nil, err
	}
	traces := make([]uint8, m.Cols*inputFrame)

	for i := 0; i < Patches; i++ {
		hw := t.layout.Input[i]
		offset := (hw/PatchesPerGroup)*InputColumns + hw%PatchesPerGroup
		for s, v := range m.Row(i) {
			traces[s*inputFrame+offset] = v
		}
	}
	return traces, nil
}

func checkMatrix(m Matrix) error {
	if m.Rows != Patches || m.Cols < 0 || len(m.Data) != m.Rows*m.Cols {
		return errors.Newf(errors.ErrorTypeInvalidShape,
			"trigger matrix is %dx%d with %d values, want %d rows", m.Rows, m.Cols, len(m.Data), Patches)
	}
	return nil
}
