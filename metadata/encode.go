package metadata

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/s3db-go/s3db/codec"
	"github.com/s3db-go/s3db/schema"
)

// EncodeAttribute renders one attribute's validated value to its metadata
// string form. Exported for the partition engine, which encodes partition
// key fields through the same codecs as the primary record.
func EncodeAttribute(attr *schema.Attribute, value interface{}) (string, error) {
	return encodeAttribute(attr, value)
}

// encodeAttribute renders one attribute's validated value to its metadata
// string form, per the semantic codec named by the attribute's type.
func encodeAttribute(attr *schema.Attribute, value interface{}) (string, error) {
	switch attr.Type.Kind {
	case schema.KindString, schema.KindSecret, schema.KindDate:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("metadata: attribute %q: expected string, got %T", attr.Name, value)
		}
		return codec.EncodeSmartString(s), nil

	case schema.KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("metadata: attribute %q: expected bool, got %T", attr.Name, value)
		}
		return strconv.FormatBool(b), nil

	case schema.KindNumber:
		f, err := toFloat(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil

	case schema.KindDecimal:
		f, err := toFloat(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeFixedPoint(f, attr.Type.Precision)

	case schema.KindGeoLat:
		f, err := toFloat(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeGeoLat(f)

	case schema.KindGeoLon:
		f, err := toFloat(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeGeoLon(f)

	case schema.KindEmbedding:
		vec, err := toFloatSlice(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeEmbedding(vec)

	case schema.KindMoney:
		currency, units, err := toMoney(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeMoney(units, currency)

	case schema.KindIP4:
		ip, err := toIP(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeIPv4(ip)

	case schema.KindIP6:
		ip, err := toIP(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeIPv6Smart(ip)

	case schema.KindBinary:
		switch v := value.(type) {
		case []byte:
			return codec.EncodeSmartString(string(v)), nil
		case string:
			return codec.EncodeSmartString(v), nil
		}
		return "", fmt.Errorf("metadata: attribute %q: expected binary data, got %T", attr.Name, value)

	case schema.KindJSON:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("metadata: attribute %q: %w", attr.Name, err)
		}
		return codec.EncodeSmartString(string(raw)), nil
	}

	return "", fmt.Errorf("metadata: attribute %q: unsupported kind %q", attr.Name, attr.Type.Kind)
}

// decodeAttribute is the inverse of encodeAttribute.
func decodeAttribute(attr *schema.Attribute, encoded string) (interface{}, error) {
	switch attr.Type.Kind {
	case schema.KindString, schema.KindSecret, schema.KindDate:
		return codec.DecodeSmartString(encoded)

	case schema.KindBoolean:
		return strconv.ParseBool(encoded)

	case schema.KindNumber:
		return strconv.ParseFloat(encoded, 64)

	case schema.KindDecimal:
		return codec.DecodeFixedPoint(encoded, attr.Type.Precision)

	case schema.KindGeoLat:
		return codec.DecodeGeoLat(encoded)

	case schema.KindGeoLon:
		return codec.DecodeGeoLon(encoded)

	case schema.KindEmbedding:
		return codec.DecodeEmbedding(encoded)

	case schema.KindMoney:
		currency, units, err := codec.DecodeMoney(encoded)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"currency": currency, "units": units}, nil

	case schema.KindIP4:
		return codec.DecodeIPv4(encoded)

	case schema.KindIP6:
		return codec.DecodeIPv6Smart(encoded)

	case schema.KindBinary:
		return codec.DecodeSmartString(encoded)

	case schema.KindJSON:
		raw, err := codec.DecodeSmartString(encoded)
		if err != nil {
			return nil, err
		}
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("metadata: unsupported kind %q", attr.Type.Kind)
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", value)
}

func toFloatSlice(value interface{}) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		out := make([]float64, len(v))
		for i, elem := range v {
			f, err := toFloat(elem)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a numeric vector, got %T", value)
}

func toMoney(value interface{}) (currency string, units int64, err error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return "", 0, fmt.Errorf("expected a money object, got %T", value)
	}
	currency, ok = m["currency"].(string)
	if !ok {
		return "", 0, fmt.Errorf("money value missing currency")
	}
	switch u := m["units"].(type) {
	case int64:
		units = u
	case float64:
		units = int64(u)
	case int:
		units = int64(u)
	default:
		return "", 0, fmt.Errorf("money value missing units")
	}
	return currency, units, nil
}

func toIP(value interface{}) (net.IP, error) {
	switch v := value.(type) {
	case net.IP:
		return v, nil
	case string:
		ip := net.ParseIP(v)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address %q", v)
		}
		return ip, nil
	}
	return nil, fmt.Errorf("expected an IP address, got %T", value)
}
