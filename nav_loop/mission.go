package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	control "waypoint-nav/nav_loop/navigation_control"
)

// Control modes
const (
	ModeNavigate = "navigate"
	ModeChase    = "chase"
)

// Mission is everything one run of the node needs.
type Mission struct {
	Meta       MissionMeta         `json:"meta" yaml:"meta"`
	CAN        CANConfig           `json:"can" yaml:"can"`
	Navigation NavigationConfig    `json:"navigation" yaml:"navigation"`
	Chase      control.ChaseConfig `json:"chase" yaml:"chase"`
	Debug      DebugConfig         `json:"debug" yaml:"debug"`

	// Digest identifies the mission file contents.
	Digest uint64 `json:"-" yaml:"-"`
}

type MissionMeta struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	ControlMode string `json:"control_mode" yaml:"control_mode"` // "navigate" or "chase"
}

type CANConfig struct {
	Interface string `json:"interface" yaml:"interface"`
	MapPath   string `json:"map" yaml:"map"`
	CmdFrame  string `json:"cmd_frame" yaml:"cmd_frame"`
	PoseFrame string `json:"pose_frame" yaml:"pose_frame"` // empty disables the debug echo on the bus
}

// NavigationConfig holds the waypoint route and its controller settings.
type NavigationConfig struct {
	control.GoalSeekerConfig `yaml:",inline"`
	control.SupervisorConfig `yaml:",inline"`

	Waypoints     []control.Waypoint `json:"waypoints" yaml:"waypoints"`
	WaypointScale float64            `json:"waypoint_scale" yaml:"waypoint_scale"` // fraction, 0.10 = +10%
	Scan          ScanConfig         `json:"scan" yaml:"scan"`
}

type ScanConfig struct {
	RangeMin float64 `json:"range_min" yaml:"range_min"`
	RangeMax float64 `json:"range_max" yaml:"range_max"`
}

type DebugConfig struct {
	PosecastAddr    string `json:"posecast_addr" yaml:"posecast_addr"` // empty disables the websocket
	SensorTimeoutMS int    `json:"sensor_timeout_ms" yaml:"sensor_timeout_ms"`
}

// DefaultRoute is the route driven when the mission names none.
var DefaultRoute = []control.Waypoint{
	{X: 1.5, Y: 0.0},
	{X: 1.5, Y: 1.4},
	{X: 0.0, Y: 1.4},
}

// DefaultMission returns the Burger defaults. Mission files are decoded on
// top of it, so they only need to name what differs.
func DefaultMission() Mission {
	return Mission{
		Meta: MissionMeta{ControlMode: ModeNavigate},
		CAN: CANConfig{
			Interface: "vcan0",
			MapPath:   "config/can/nav_can_map.csv",
			CmdFrame:  "CMD_VEL",
			PoseFrame: "DEBUG_POSE",
		},
		Navigation: NavigationConfig{
			GoalSeekerConfig: control.DefaultGoalSeekerConfig(),
			SupervisorConfig: control.DefaultSupervisorConfig(),
			Waypoints:        append([]control.Waypoint(nil), DefaultRoute...),
			WaypointScale:    0.10,
		},
		Chase: control.DefaultChaseConfig(),
		Debug: DebugConfig{SensorTimeoutMS: 500},
	}
}

// LoadMission reads a mission from a YAML or JSON file, chosen by extension.
func LoadMission(path string) (Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mission{}, errors.Wrap(err, "read mission")
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		return Mission{}, errors.Errorf("mission %s: unsupported extension (want .yaml, .yml or .json)", path)
	}

	m, err := ParseMission(data, format)
	if err != nil {
		return Mission{}, errors.Wrapf(err, "mission %s", path)
	}
	return m, nil
}

// ParseMission decodes, completes and validates a mission document.
func ParseMission(data []byte, format string) (Mission, error) {
	m := DefaultMission()

	switch format {
	case "json":
		if err := json.Unmarshal(data, &m); err != nil {
			return Mission{}, errors.Wrap(err, "unmarshal json")
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Mission{}, errors.Wrap(err, "unmarshal yaml")
		}
	default:
		return Mission{}, errors.Errorf("unknown mission format %q", format)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return Mission{}, err
	}
	m.Digest = xxhash.Sum64(data)
	return m, nil
}

func (m *Mission) applyDefaults() {
	def := DefaultMission()
	if m.Meta.ControlMode == "" {
		m.Meta.ControlMode = def.Meta.ControlMode
	}
	m.Meta.ControlMode = strings.ToLower(m.Meta.ControlMode)
	if m.CAN.CmdFrame == "" {
		m.CAN.CmdFrame = def.CAN.CmdFrame
	}
	if m.Debug.SensorTimeoutMS == 0 {
		m.Debug.SensorTimeoutMS = def.Debug.SensorTimeoutMS
	}
}

func (m Mission) Validate() error {
	switch m.Meta.ControlMode {
	case ModeNavigate, ModeChase:
	default:
		return errors.Errorf("unknown control_mode %q (want %s or %s)", m.Meta.ControlMode, ModeNavigate, ModeChase)
	}
	if m.CAN.Interface == "" {
		return errors.New("can.interface is required")
	}
	if m.CAN.MapPath == "" {
		return errors.New("can.map is required")
	}

	nav := m.Navigation
	if err := nav.GoalSeekerConfig.Validate(); err != nil {
		return errors.Wrap(err, "navigation")
	}
	if nav.ObstacleThreshold < 0 {
		return errors.Errorf("navigation: obstacle_threshold must be >= 0, got %.3f", nav.ObstacleThreshold)
	}
	if nav.WaypointScale <= -1 {
		return errors.Errorf("navigation: waypoint_scale %.3f collapses the route", nav.WaypointScale)
	}
	if nav.Scan.RangeMin > 0 && nav.Scan.RangeMax > 0 && nav.Scan.RangeMin > nav.Scan.RangeMax {
		return errors.Errorf("navigation: scan range_min %.3f exceeds range_max %.3f", nav.Scan.RangeMin, nav.Scan.RangeMax)
	}
	if err := m.Chase.Validate(); err != nil {
		return errors.Wrap(err, "chase")
	}
	if m.Debug.SensorTimeoutMS < 0 {
		return errors.Errorf("debug: sensor_timeout_ms must be >= 0, got %d", m.Debug.SensorTimeoutMS)
	}
	return nil
}

// Route returns the waypoints with the scale applied.
func (m Mission) Route() []control.Waypoint {
	return control.ScaleAll(m.Navigation.Waypoints, m.Navigation.WaypointScale)
}

func (m Mission) DigestString() string {
	return fmt.Sprintf("%016x", m.Digest)
}
