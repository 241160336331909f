package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumberValue decodes a JSON number or a string holding one, so "20" and 20 are
// both stored as 20.
type NumberValue float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *NumberValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidValue, string(b))
	}
	*n = NumberValue(f)
	return nil
}

// StringValue decodes a JSON string, number or boolean into its string form,
// so a region of 1004 is stored as "1004".
type StringValue string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	switch {
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*s = StringValue(str)
	case string(b) == "true" || string(b) == "false":
		*s = StringValue(b)
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("%w: %s is not a string", ErrInvalidValue, string(b))
		}
		*s = StringValue(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

// bodyFields is the wire form shared by RecordInput and RecordPatch.
type bodyFields struct {
	Region           *StringValue  `json:"region"`
	WeatherCondition *StringValue  `json:"weatherCondition"`
	Temperature      *NumberValue  `json:"temperature"`
	Date             *FlexibleDate `json:"date"`
}

func (f bodyFields) patch() RecordPatch {
	var p RecordPatch
	if f.Region != nil {
		v := string(*f.Region)
		p.Region = &v
	}
	if f.WeatherCondition != nil {
		v := string(*f.WeatherCondition)
		p.WeatherCondition = &v
	}
	if f.Temperature != nil {
		v := float64(*f.Temperature)
		p.Temperature = &v
	}
	p.Date = f.Date
	return p
}

// UnmarshalJSON decodes a full body, converting values to the schema types.
func (in *RecordInput) UnmarshalJSON(b []byte) error {
	var f bodyFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*in = RecordInput(f.patch())
	return nil
}

// UnmarshalJSON decodes a partial body, converting values to the schema types.
func (p *RecordPatch) UnmarshalJSON(b []byte) error {
	var f bodyFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = f.patch()
	return nil
}
