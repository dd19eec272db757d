package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for frames that are not a JSON object of the expected shape.
var ErrMalformed = errors.New("malformed message")

// Inbound is a decoded client command. Fields not used by Type are left zero.
type Inbound struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	RoomID     Number `json:"roomId"`
	Lock       *bool  `json:"lock"`
	Change     string `json:"change"`
	Difficulty Number `json:"difficulty"`
}

// Number is an integer field that clients send either as a JSON number or as a
// decimal string. Set reports whether the field was present and non-null.
type Number struct {
	Value int
	Set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("%w: %v is not an integer", ErrMalformed, v)
		}
		*n = Number{Value: int(v), Set: true}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrMalformed, v)
		}
		*n = Number{Value: i, Set: true}
	default:
		return fmt.Errorf("%w: unexpected %T", ErrMalformed, raw)
	}
	return nil
}

// Decode parses a single frame. A frame without a type decodes fine and is left for
// the router to ignore.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Inbound{}, err
		}
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return in, nil
}
