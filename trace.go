package cascade

import (
	"encoding/json"
)

// Trace captures the ordered reconciler actions performed during one pass:
// a user selection, an applied fetch result, a synthetic select-all, or a
// deep-link application.
type Trace struct {
	Trigger   string      `json:"trigger"`
	Level     int         `json:"level"`
	LevelName string      `json:"level_name"`
	ParentKey string      `json:"parent_key,omitempty"`
	Steps     []TraceStep `json:"steps"`
}

// TraceStep details one reconciler action within a pass.
type TraceStep struct {
	Op        ChainOp  `json:"op"`
	Level     int      `json:"level"`
	LevelName string   `json:"level_name"`
	ParentKey string   `json:"parent_key,omitempty"`
	IDs       []string `json:"ids,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

func (t *Trace) append(step TraceStep) {
	if t == nil {
		return
	}
	t.Steps = append(t.Steps, step)
}
