package main

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	"waypoint-nav/utils"
)

const testMapPath = "../config/can/nav_can_map.csv"

func loadTestMap(t *testing.T) *utils.CANMap {
	t.Helper()
	cmap, err := utils.LoadCANMap(testMapPath)
	require.NoError(t, err)
	return cmap
}

type fakeReader struct {
	frames chan can.Frame
}

func newFakeReader() *fakeReader {
	return &fakeReader{frames: make(chan can.Frame, 32)}
}

func (r *fakeReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	}
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu     sync.Mutex
	frames []can.Frame
	err    error
}

func (w *fakeWriter) WriteFrame(_ context.Context, f can.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, f)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// sent returns the written frames with the given ID.
func (w *fakeWriter) sent(id uint32) []can.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []can.Frame
	for _, f := range w.frames {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out
}

func (w *fakeWriter) last() (can.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.frames) == 0 {
		return can.Frame{}, false
	}
	return w.frames[len(w.frames)-1], true
}

func mustEncode(t *testing.T, cmap *utils.CANMap, name string, values map[string]float64) can.Frame {
	t.Helper()
	f, err := cmap.EncodeFrame(name, values)
	require.NoError(t, err)
	return f
}

func mustDecode(t *testing.T, cmap *utils.CANMap, f can.Frame) map[string]float64 {
	t.Helper()
	_, values, err := cmap.DecodeFrame(f)
	require.NoError(t, err)
	return values
}

func odomFrames(t *testing.T, cmap *utils.CANMap, x, y, yaw float64) []can.Frame {
	return []can.Frame{
		mustEncode(t, cmap, frameOdomPosition, map[string]float64{"odom_x": x, "odom_y": y}),
		mustEncode(t, cmap, frameOdomOrientation, map[string]float64{
			"odom_qz": math.Sin(yaw / 2),
			"odom_qw": math.Cos(yaw / 2),
		}),
	}
}

func scanFrame(t *testing.T, cmap *utils.CANMap, index, count int, ranges ...float64) can.Frame {
	values := map[string]float64{
		"sector_index": float64(index),
		"sector_count": float64(count),
	}
	for i, r := range ranges {
		values["range_"+strconv.Itoa(i)] = r
	}
	return mustEncode(t, cmap, frameScanSector, values)
}
