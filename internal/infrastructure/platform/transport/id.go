package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a remote record id that platforms send either as a JSON number or string
type ID string

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(s)
	return nil
}

// MarshalJSON sends numeric ids as numbers
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// ProbeID recovers the "id" field of a record that failed to decode as a whole
func ProbeID(raw json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.ID) == 0 {
		return ""
	}
	var id ID
	if err := json.Unmarshal(probe.ID, &id); err != nil {
		return ""
	}
	return string(id)
}
