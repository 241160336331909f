package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidDate is returned when a date value cannot be parsed in any accepted layout.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidValue is returned when a body field cannot be converted to its schema type.
	ErrInvalidValue = errors.New("invalid field value")
)

// WeatherRecord is one weather observation as stored in the weathers collection.
type WeatherRecord struct {
	ID               int64     `json:"id" bson:"id" validate:"required"`
	Region           string    `json:"region" bson:"region" validate:"required"`
	Date             time.Time `json:"date" bson:"date" validate:"required"`
	WeatherCondition string    `json:"weatherCondition" bson:"weatherCondition" validate:"required"`
	Temperature      float64   `json:"temperature" bson:"temperature" validate:"gte=-100,lte=100"`
}

// RecordInput is the body of create and full-update requests. Pointers distinguish
// missing fields from zero values (a temperature of 0 is valid).
type RecordInput struct {
	Region           *string       `json:"region" validate:"required"`
	WeatherCondition *string       `json:"weatherCondition" validate:"required"`
	Temperature      *float64      `json:"temperature" validate:"required"`
	Date             *FlexibleDate `json:"date" validate:"required"`
}

// Record builds a WeatherRecord with the given id. Missing fields are left zero;
// run the input through validation first.
func (in RecordInput) Record(id int64) WeatherRecord {
	r := WeatherRecord{ID: id}
	in.Patch().Apply(&r)
	return r
}

// Patch converts a full input into an update that sets every supplied field.
func (in RecordInput) Patch() RecordPatch {
	return RecordPatch{
		Region:           in.Region,
		WeatherCondition: in.WeatherCondition,
		Temperature:      in.Temperature,
		Date:             in.Date,
	}
}

// RecordPatch is the body of a partial update. Only non-nil fields are written.
// Fields outside the schema (including id) are dropped when decoding.
type RecordPatch struct {
	Region           *string       `json:"region,omitempty" validate:"omitempty,min=1"`
	WeatherCondition *string       `json:"weatherCondition,omitempty" validate:"omitempty,min=1"`
	Temperature      *float64      `json:"temperature,omitempty" validate:"omitempty,gte=-100,lte=100"`
	Date             *FlexibleDate `json:"date,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p RecordPatch) IsEmpty() bool {
	return p.Region == nil && p.WeatherCondition == nil && p.Temperature == nil && p.Date == nil
}

// Apply merges the supplied fields into r.
func (p RecordPatch) Apply(r *WeatherRecord) {
	if p.Region != nil {
		r.Region = *p.Region
	}
	if p.WeatherCondition != nil {
		r.WeatherCondition = *p.WeatherCondition
	}
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if p.Date != nil {
		r.Date = p.Date.Time
	}
}

// FlexibleDate decodes the date formats clients send: RFC 3339, a bare date,
// a timestamp without zone, or Unix milliseconds as a JSON number.
type FlexibleDate struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *FlexibleDate) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '"' {
		var ms json.Number
		if err := json.Unmarshal(b, &ms); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
		}
		n, err := ms.Int64()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
		}
		d.Time = time.UnixMilli(n).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses s using the accepted date layouts. Values without a zone are UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
