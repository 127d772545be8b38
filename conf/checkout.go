package conf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Checkout populates the exported fields of the struct pointed to by v from
// configuration values. Fields opt in with a `conf:"SOME_ENV_VAR"` tag and may
// supply a fallback with `conf_default:"..."`. Embedded structs tagged
// `conf:",squash"` (or untagged) are walked recursively.
//
// Supported field kinds: string, bool, int, int32, int64, float64.
func Checkout(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("conf: Checkout requires a non-nil struct pointer, got %T", v)
	}
	return checkoutStruct(rv.Elem())
}

func checkoutStruct(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		value := rv.Field(i)

		if !value.CanSet() {
			continue
		}

		tag := field.Tag.Get("conf")
		if value.Kind() == reflect.Struct && (tag == ",squash" || tag == "") {
			if err := checkoutStruct(value); err != nil {
				return err
			}
			continue
		}
		if tag == "" || tag == "-" {
			continue
		}

		raw := GetEnv(strings.Split(tag, ",")[0])
		if raw == "" {
			raw = field.Tag.Get("conf_default")
		}
		if raw == "" {
			continue
		}

		if err := setField(value, raw); err != nil {
			return fmt.Errorf("conf: field %s: %s", field.Name, err)
		}
	}
	return nil
}

func setField(value reflect.Value, raw string) error {
	switch value.Kind() {
	case reflect.String:
		value.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		value.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		value.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		value.SetFloat(f)
	default:
		return fmt.Errorf("unsupported kind %s", value.Kind())
	}
	return nil
}
