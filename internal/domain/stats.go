package domain

import (
	"encoding/json"
	"fmt"
)

// SystemStats is the wire form of GET /monitoring/stats.
type SystemStats struct {
	Tasks   TaskStats   `json:"tasks"`
	Workers WorkerStats `json:"workers"`
}

// TaskStats counts tasks in total and per status. Counts for status strings this
// client does not know are summed under TaskStatusUnknown. Error is set when the
// server could not count.
type TaskStats struct {
	Total    int
	ByStatus map[TaskStatus]int
	Error    string
}

type WorkerStats struct {
	Active     int      `json:"active"`
	Registered []string `json:"registered"`
	Error      string   `json:"error,omitempty"`
}

// UnmarshalJSON reads the flat {"total":n,"<status>":n,"error":"..."} object.
func (s *TaskStats) UnmarshalJSON(raw []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	s.ByStatus = make(map[TaskStatus]int, len(fields))
	for key, v := range fields {
		var err error
		switch key {
		case "total":
			err = json.Unmarshal(v, &s.Total)
		case "error":
			err = json.Unmarshal(v, &s.Error)
		default:
			var n int
			if err = json.Unmarshal(v, &n); err == nil {
				s.ByStatus[ParseStatus(key)] += n
			}
		}
		if err != nil {
			return fmt.Errorf("tasks.%s: %w", key, err)
		}
	}
	return nil
}

func (s TaskStats) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.ByStatus)+2)
	for st, n := range s.ByStatus {
		out[string(st)] = n
	}
	out["total"] = s.Total
	if s.Error != "" {
		out["error"] = s.Error
	}
	return json.Marshal(out)
}

// Active returns the number of tasks that are neither completed nor failed.
func (s TaskStats) Active() int {
	n := 0
	for st, c := range s.ByStatus {
		if !st.IsTerminal() {
			n += c
		}
	}
	return n
}
