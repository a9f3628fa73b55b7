package models

import (
	"encoding/json"
	"strconv"
)

// Float необязательное числовое значение. Нулевое значение: отсутствие.
type Float struct {
	value float64
	valid bool
}

// Some возвращает заданное значение
func Some(v float64) Float {
	return Float{value: v, valid: true}
}

// None возвращает отсутствующее значение
func None() Float {
	return Float{}
}

// Get возвращает значение и признак наличия
func (f Float) Get() (float64, bool) {
	return f.value, f.valid
}

// Valid сообщает, задано ли значение
func (f Float) Valid() bool {
	return f.valid
}

// Or возвращает значение либо fallback при отсутствии
func (f Float) Or(fallback float64) float64 {
	if !f.valid {
		return fallback
	}
	return f.value
}

func (f Float) String() string {
	if !f.valid {
		return "N/A"
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

// MarshalJSON кодирует отсутствие как null
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// UnmarshalJSON принимает число или null
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Some(v)
	return nil
}
