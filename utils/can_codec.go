package utils

import (
	"github.com/pkg/errors"
	"go.einride.tech/can"
)

// EncodePayload packs physical signal values into the frame's payload.
// Missing signals take their default; values are clamped to [min, max].
func (m *CANMap) EncodePayload(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, errors.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	var payload uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		payload = s.pack(payload, v)
	}

	out := make([]byte, fd.DLC)
	for i := 0; i < fd.DLC; i++ {
		out[i] = byte(payload >> (8 * uint(i)))
	}
	return out, fd.ID, nil
}

// EncodeFrame produces an einride can.Frame ready to transmit.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodePayload(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}

	var f can.Frame
	f.ID = id
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)
	return f, nil
}

// DecodePayload unpacks physical signal values for the frame with the given ID.
func (m *CANMap) DecodePayload(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, errors.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var payload uint64
	for i := 0; i < fd.DLC && i < 8; i++ {
		payload |= uint64(data[i]) << (8 * uint(i))
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		out[s.Name] = s.unpack(payload)
	}
	return out, nil
}

// DecodeFrame unpacks a received einride frame.
func (m *CANMap) DecodeFrame(frame can.Frame) (*FrameDef, map[string]float64, error) {
	if frame.IsRemote {
		return nil, nil, errors.Errorf("frame 0x%X is a remote frame", frame.ID)
	}
	if frame.Length > 8 {
		return nil, nil, errors.Errorf("frame 0x%X has invalid length %d", frame.ID, frame.Length)
	}
	values, err := m.DecodePayload(frame.ID, frame.Data[:frame.Length])
	if err != nil {
		return nil, nil, err
	}
	return m.ByID[frame.ID], values, nil
}
