package checkpoint

import (
	"encoding/json"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// State records are JSON-ish by contract (string/number/list/boolean
// fields), so the wire codec is plain JSON.

func encodeState(s api.State) ([]byte, error) {
	if s == nil {
		s = api.State{}
	}
	return json.Marshal(s)
}

func decodeState(data []byte) (api.State, error) {
	if len(data) == 0 {
		return api.State{}, nil
	}
	var s api.State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
