package validation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONField stores any value as a JSON text column.
type JSONField[T any] struct {
	Data T
}

func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &j.Data)
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	default:
		return fmt.Errorf("cannot scan %T into JSONField", value)
	}
}

func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
