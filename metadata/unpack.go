package metadata

import (
	"encoding/json"
	"strings"

	"github.com/s3db-go/s3db/schema"
)

// Unpack is the inverse of Pack: it reconstructs a record from an object's
// metadata and body, dispatching on the behavior recorded at pack time.
func Unpack(s *schema.Schema, metadata map[string]string, body []byte) (map[string]interface{}, error) {
	behavior := Behavior(metadata[reservedBehaviorKey])
	if behavior == "" {
		behavior = BehaviorBodyOverflow
	}

	if behavior == BehaviorBodyOnly {
		return unpackBodyOnly(s, body)
	}

	var overflow map[string]string
	if hasOverflowFlag(metadata) {
		env, err := parseOverflowBody(body)
		if err != nil {
			return nil, err
		}
		overflow = env.Overflow
	}

	record := make(map[string]interface{}, len(s.Order))
	for _, name := range s.Order {
		attr := s.Attributes[name]

		if _, overflowed := metadata[overflowFlagPrefix+name]; overflowed {
			encoded, ok := overflow[name]
			if !ok {
				continue
			}
			value, err := decodeAttribute(attr, encoded)
			if err != nil {
				return nil, err
			}
			record[name] = value
			continue
		}

		encoded, present := metadata[name]
		if !present {
			continue
		}
		value, err := decodeAttribute(attr, encoded)
		if err != nil {
			return nil, err
		}
		record[name] = value
	}

	return record, nil
}

func unpackBodyOnly(s *schema.Schema, body []byte) (map[string]interface{}, error) {
	var encoded map[string]string
	if err := json.Unmarshal(body, &encoded); err != nil {
		return nil, err
	}

	record := make(map[string]interface{}, len(s.Order))
	for _, name := range s.Order {
		raw, present := encoded[name]
		if !present {
			continue
		}
		value, err := decodeAttribute(s.Attributes[name], raw)
		if err != nil {
			return nil, err
		}
		record[name] = value
	}
	return record, nil
}

func hasOverflowFlag(metadata map[string]string) bool {
	for key := range metadata {
		if strings.HasPrefix(key, overflowFlagPrefix) {
			return true
		}
	}
	return false
}

func parseOverflowBody(body []byte) (overflowBody, error) {
	var env overflowBody
	if len(body) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return overflowBody{}, err
	}
	return env, nil
}
