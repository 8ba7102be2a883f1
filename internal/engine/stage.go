package engine

import (
	"fmt"
	"strings"
)

// Stage is a level of computational readiness of a State. Stages are totally
// ordered; a value that depends on stage S is valid only once S is realized.
type Stage int

const (
	StageEmpty Stage = iota
	StageTopology
	StageModel
	StageInstance
	StageTime
	StagePosition
	StageVelocity
	StageDynamics
	StageAcceleration
	StageReport
)

const (
	LowestStage  = StageTopology
	HighestStage = StageReport
)

var stageNames = [...]string{
	StageEmpty:        "Empty",
	StageTopology:     "Topology",
	StageModel:        "Model",
	StageInstance:     "Instance",
	StageTime:         "Time",
	StagePosition:     "Position",
	StageVelocity:     "Velocity",
	StageDynamics:     "Dynamics",
	StageAcceleration: "Acceleration",
	StageReport:       "Report",
}

func (s Stage) String() string {
	if s < StageEmpty || s > HighestStage {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) IsValid() bool { return s >= StageEmpty && s <= HighestStage }

func (s Stage) Next() Stage {
	if s >= HighestStage {
		return HighestStage
	}
	return s + 1
}

func (s Stage) Prev() Stage {
	if s <= StageEmpty {
		return StageEmpty
	}
	return s - 1
}

// Stages lists the realizable stages in increasing order.
func Stages() []Stage {
	out := make([]Stage, 0, int(HighestStage))
	for s := LowestStage; s <= HighestStage; s++ {
		out = append(out, s)
	}
	return out
}

// ParseStage accepts a stage name in any letter case.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return StageEmpty, fmt.Errorf("engine: unknown stage %q", name)
}

// MarshalText lets stages appear by name in YAML and JSON.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	st, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
