package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	control "waypoint-nav/nav_loop/navigation_control"
)

func TestLoadMissionFile(t *testing.T) {
	m, err := LoadMission("../config/mission.yaml")
	require.NoError(t, err)

	assert.Equal(t, ModeNavigate, m.Meta.ControlMode)
	assert.Equal(t, "vcan0", m.CAN.Interface)
	assert.Equal(t, 0.01, m.Navigation.WaypointThreshold)
	assert.Equal(t, 0.2, m.Navigation.ObstacleThreshold)
	assert.Equal(t, 1.7, m.Navigation.Angular.Kp)
	assert.Equal(t, 0.1, m.Navigation.Linear.Kd)
	assert.Equal(t, 31.0, m.Chase.MaxAngleError)
	assert.Equal(t, ":8090", m.Debug.PosecastAddr)
	assert.NotZero(t, m.Digest)
	assert.Len(t, m.DigestString(), 16)

	route := m.Route()
	require.Len(t, route, 3)
	assert.InDelta(t, 1.65, route[0].X, 1e-12)
	assert.InDelta(t, 1.54, route[1].Y, 1e-12)
}

func TestParseMissionKeepsDefaults(t *testing.T) {
	m, err := ParseMission([]byte("navigation:\n  obstacle_threshold: 0.3\n"), "yaml")
	require.NoError(t, err)

	def := control.DefaultGoalSeekerConfig()
	assert.Equal(t, 0.3, m.Navigation.ObstacleThreshold)
	assert.Equal(t, def.WaypointThreshold, m.Navigation.WaypointThreshold)
	assert.Equal(t, def.Limits, m.Navigation.Limits)
	assert.Equal(t, DefaultRoute, m.Navigation.Waypoints)
	assert.Equal(t, "CMD_VEL", m.CAN.CmdFrame)
}

func TestParseMissionJSON(t *testing.T) {
	doc := `{
		"meta": {"name": "chase_ball", "control_mode": "CHASE"},
		"navigation": {"waypoint_threshold": 0.05, "waypoints": [{"x": 1, "y": 2}], "waypoint_scale": 0},
		"chase": {"lost_range": 80}
	}`
	m, err := ParseMission([]byte(doc), "json")
	require.NoError(t, err)

	assert.Equal(t, ModeChase, m.Meta.ControlMode)
	assert.Equal(t, 0.05, m.Navigation.WaypointThreshold)
	assert.Equal(t, []control.Waypoint{{X: 1, Y: 2}}, m.Route())
	assert.Equal(t, 80.0, m.Chase.LostRange)
	assert.Equal(t, 1.875, m.Chase.Angular.Kp)
}

func TestParseMissionRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"mode", "meta: {control_mode: wander}"},
		{"threshold", "navigation: {waypoint_threshold: 0}"},
		{"obstacle", "navigation: {obstacle_threshold: -0.1}"},
		{"scale", "navigation: {waypoint_scale: -1}"},
		{"scan bounds", "navigation: {scan: {range_min: 2, range_max: 1}}"},
		{"chase", "chase: {max_angle_error: 0}"},
		{"iface", "can: {interface: ''}"},
		{"syntax", "navigation: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMission([]byte(tt.doc), "yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissionByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "m.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"meta": {"name": "a"}}`), 0o644))
	a, err := LoadMission(jsonPath)
	require.NoError(t, err)

	ymlPath := filepath.Join(dir, "m.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("meta: {name: b}\n"), 0o644))
	b, err := LoadMission(ymlPath)
	require.NoError(t, err)
	assert.NotEqual(t, a.Digest, b.Digest)

	tomlPath := filepath.Join(dir, "m.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x = 1"), 0o644))
	_, err = LoadMission(tomlPath)
	assert.Error(t, err)

	_, err = LoadMission(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
