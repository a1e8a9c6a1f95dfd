package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"greentwin/internal/model"
	"greentwin/pkg/utils"
)

// ErrInvalidReading marks input errors: the reading is dropped and the pipeline continues
var ErrInvalidReading = errors.New("invalid reading")

// naive ISO-8601 layouts are interpreted as UTC
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseMessage decodes and validates one source message into a Reading
func ParseMessage(msg model.RawMessage) (model.Reading, error) {
	fields := msg.Fields
	if fields == nil {
		dec := json.NewDecoder(bytes.NewReader(msg.Payload))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return model.Reading{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidReading, err)
		}
	}
	return ParseFields(fields, msg.ReceivedAt)
}

// ParseFields builds a Reading from decoded fields. receivedAt substitutes a
// missing or unparsable timestamp.
func ParseFields(fields map[string]interface{}, receivedAt time.Time) (model.Reading, error) {
	if fields == nil {
		return model.Reading{}, fmt.Errorf("%w: empty message", ErrInvalidReading)
	}

	machineID, _ := fields["machine_id"].(string)
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return model.Reading{}, fmt.Errorf("%w: missing machine_id", ErrInvalidReading)
	}

	current, err := requiredNumber(fields, "current_amp")
	if err != nil {
		return model.Reading{}, err
	}
	power, err := requiredNumber(fields, "power_kw")
	if err != nil {
		return model.Reading{}, err
	}

	r := model.Reading{
		MachineID:  machineID,
		CurrentAmp: current,
		PowerKW:    power,
		Timestamp:  parseTimestamp(fields["timestamp"], receivedAt),
	}
	return r, ValidateReading(r)
}

// ValidateReading checks the Reading invariants
func ValidateReading(r model.Reading) error {
	if r.MachineID == "" {
		return fmt.Errorf("%w: missing machine_id", ErrInvalidReading)
	}
	if _, ok := utils.Numeric(r.CurrentAmp); !ok || r.CurrentAmp < 0 {
		return fmt.Errorf("%w: current_amp must be finite and non-negative, got %v", ErrInvalidReading, r.CurrentAmp)
	}
	if _, ok := utils.Numeric(r.PowerKW); !ok || r.PowerKW < 0 {
		return fmt.Errorf("%w: power_kw must be finite and non-negative, got %v", ErrInvalidReading, r.PowerKW)
	}
	return nil
}

func requiredNumber(fields map[string]interface{}, name string) (float64, error) {
	raw, present := fields[name]
	if !present || raw == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidReading, name)
	}
	v, ok := utils.Numeric(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a finite number: %v", ErrInvalidReading, name, raw)
	}
	return v, nil
}

func parseTimestamp(raw interface{}, receivedAt time.Time) time.Time {
	fallback := receivedAt.UTC()
	if fallback.IsZero() {
		fallback = time.Now().UTC()
	}
	s, ok := raw.(string)
	if !ok {
		return fallback
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
