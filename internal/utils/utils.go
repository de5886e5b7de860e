package utils

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// NormalizeValue converts a value read from or bound to the store into a comparable
// canonical form: []byte becomes string, non-nil pointers and driver.Valuers are
// unwrapped. This is necessary to ensure a consistent cache key regardless of how the
// value was constructed.
func NormalizeValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	// A nil pointer whose element implements driver.Valuer would panic in Value.
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return v
		}
		return NormalizeValue(dv)
	}

	if rv.Kind() == reflect.Ptr {
		return NormalizeValue(rv.Elem().Interface())
	}
	return value
}

// KeyString renders a key value as the case-insensitive string used to index cached
// rows. Integer keys of different widths map to the same string.
func KeyString(value interface{}) string {
	return strings.ToLower(fmt.Sprint(NormalizeValue(value)))
}

// ToSnakeCase converts a string from CamelCase to snake_case.
func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

// ParamName turns a column name into a named-parameter identifier accepted by sqlx:
// anything outside [A-Za-z0-9_] becomes an underscore.
func ParamName(column string) string {
	var b strings.Builder
	b.Grow(len(column))
	for _, r := range column {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
