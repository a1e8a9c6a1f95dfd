package anomaly

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
)

// ErrCorruptModel is returned when a persisted blob does not decode into a usable model.
var ErrCorruptModel = errors.New("corrupt model artifact")

// wireModel has Model's fields but none of its methods, so gob encodes the
// struct itself instead of calling back into MarshalBinary.
type wireModel Model

// MarshalBinary encodes the model as an opaque blob.
func (m *Model) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode((*wireModel)(m)); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and structurally validates a persisted model.
func Unmarshal(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty blob", ErrCorruptModel)
	}
	var m Model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode((*wireModel)(&m)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrCorruptModel)
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrCorruptModel)
	}
	if m.SubSample < 1 {
		return fmt.Errorf("%w: invalid subsample size %d", ErrCorruptModel, m.SubSample)
	}
	if math.IsNaN(m.Threshold) || math.IsInf(m.Threshold, 0) {
		return fmt.Errorf("%w: non-finite threshold", ErrCorruptModel)
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrCorruptModel, ti)
		}
		n := int32(len(t.Nodes))
		for ni, node := range t.Nodes {
			if node.Left == leafIndex && node.Right == leafIndex {
				continue
			}
			// children are always appended after their parent
			if node.Left <= int32(ni) || node.Right <= int32(ni) || node.Left >= n || node.Right >= n {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrCorruptModel, ti, ni)
			}
			if node.Feature < 0 || node.Feature >= len(m.Features) {
				return fmt.Errorf("%w: tree %d node %d splits on unknown feature %d", ErrCorruptModel, ti, ni, node.Feature)
			}
		}
	}
	return nil
}
