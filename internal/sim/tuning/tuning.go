package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	// CommandDelayTicks is the minimum distance between the current tick and
	// any newly submitted command's target tick. It must absorb worst-case
	// peer latency; commands inside the margin are rejected, never clamped.
	CommandDelayTicks int `yaml:"command_delay_ticks"`

	// StallTimeoutTicks bounds how many consecutive frames the loop may
	// stall waiting for the tick barrier before the match dies with a
	// connectivity fault.
	StallTimeoutTicks int `yaml:"stall_timeout_ticks"`

	// DigestRing is how many recent checksum samples are retained for
	// diagnosing a reported mismatch.
	DigestRing int `yaml:"digest_ring"`

	Morale MoraleTuning `yaml:"morale"`
	Combat CombatTuning `yaml:"combat"`
}

type MoraleTuning struct {
	Max                 int `yaml:"max"`
	RecoveryPerTick     int `yaml:"recovery_per_tick"`
	NearbyDeathPenalty  int `yaml:"nearby_death_penalty"`
	NearbyDeathRadius   int `yaml:"nearby_death_radius"`
	RoutThresholdMilli  int `yaml:"rout_threshold"`
	RallyThresholdMilli int `yaml:"rally_threshold"`
}

type CombatTuning struct {
	DigInAccuracyPenalty    float64 `yaml:"dig_in_accuracy_penalty"`
	GarrisonAccuracyPenalty float64 `yaml:"garrison_accuracy_penalty"`
	DigInSuppressionScale   float64 `yaml:"dig_in_suppression_scale"`
	FastMoveSpeedScale      float64 `yaml:"fast_move_speed_scale"`
	ReverseSpeedScale       float64 `yaml:"reverse_speed_scale"`
	RoutedSpeedScale        float64 `yaml:"routed_speed_scale"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fillDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.fillDefaults()
	return t
}

func (t *Tuning) fillDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = 60
	}
	if t.CommandDelayTicks <= 0 {
		t.CommandDelayTicks = 3
	}
	if t.StallTimeoutTicks <= 0 {
		t.StallTimeoutTicks = 300
	}
	if t.DigestRing <= 0 {
		t.DigestRing = 128
	}
	if t.Morale.Max <= 0 {
		t.Morale.Max = 1000
	}
	if t.Morale.RecoveryPerTick <= 0 {
		t.Morale.RecoveryPerTick = 1
	}
	if t.Morale.NearbyDeathPenalty <= 0 {
		t.Morale.NearbyDeathPenalty = 120
	}
	if t.Morale.NearbyDeathRadius <= 0 {
		t.Morale.NearbyDeathRadius = 20
	}
	if t.Morale.RoutThresholdMilli <= 0 {
		t.Morale.RoutThresholdMilli = 200
	}
	if t.Morale.RallyThresholdMilli <= 0 {
		t.Morale.RallyThresholdMilli = 500
	}
	if t.Combat.DigInAccuracyPenalty <= 0 {
		t.Combat.DigInAccuracyPenalty = 0.35
	}
	if t.Combat.GarrisonAccuracyPenalty <= 0 {
		t.Combat.GarrisonAccuracyPenalty = 0.45
	}
	if t.Combat.DigInSuppressionScale <= 0 {
		t.Combat.DigInSuppressionScale = 0.5
	}
	if t.Combat.FastMoveSpeedScale <= 0 {
		t.Combat.FastMoveSpeedScale = 1.5
	}
	if t.Combat.ReverseSpeedScale <= 0 {
		t.Combat.ReverseSpeedScale = 0.6
	}
	if t.Combat.RoutedSpeedScale <= 0 {
		t.Combat.RoutedSpeedScale = 1.25
	}
}
