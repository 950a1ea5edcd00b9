package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// JSON column types implementing sql.Scanner and driver.Valuer so GORM can
// persist structured fields as text.

// JSONTranscript stores an ordered transcript as a JSON column.
type JSONTranscript []TranscriptEntry

// Value implements driver.Valuer.
func (t JSONTranscript) Value() (driver.Value, error) {
	return marshalColumn(t)
}

// Scan implements sql.Scanner.
func (t *JSONTranscript) Scan(value any) error {
	return scanColumn(value, t)
}

// JSONEntities stores an extracted-entity list as a JSON column. Original
// values are excluded by the entity's own serialization rules.
type JSONEntities []ExtractedEntity

// Value implements driver.Valuer.
func (e JSONEntities) Value() (driver.Value, error) {
	return marshalColumn(e)
}

// Scan implements sql.Scanner.
func (e *JSONEntities) Scan(value any) error {
	return scanColumn(value, e)
}

// JSONCustody stores a chain-of-custody log as a JSON column.
type JSONCustody []CustodyEntry

// Value implements driver.Valuer.
func (c JSONCustody) Value() (driver.Value, error) {
	return marshalColumn(c)
}

// Scan implements sql.Scanner.
func (c *JSONCustody) Scan(value any) error {
	return scanColumn(value, c)
}

// JSONStringArray stores a string list as a JSON column.
type JSONStringArray []string

// Value implements driver.Valuer.
func (a JSONStringArray) Value() (driver.Value, error) {
	return marshalColumn(a)
}

// Scan implements sql.Scanner.
func (a *JSONStringArray) Scan(value any) error {
	return scanColumn(value, a)
}

func marshalColumn(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanColumn(value, dest any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
