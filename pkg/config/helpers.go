package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cperrin88/nifpre/pkg/errors"
)

// Keys returns every settable key as section.field, sorted.
func (c *Config) Keys() []string {
	m := c.ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue returns the value of a section.field key as a string.
func (c *Config) GetValue(key string) (string, error) {
	value, ok := c.ToMap()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
	return value, nil
}

// SetValue sets a section.field key from its string form. Lists are comma
// separated; durations use time.ParseDuration syntax.
func (c *Config) SetValue(key, value string) error {
	field, ok := c.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}

	switch {
	case field.Type() == reflect.TypeOf(time.Duration(0)):
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		field.SetInt(int64(d))
	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %s", key, value)
		}
		field.SetBool(b)
	case field.Kind() == reflect.Slice:
		field.Set(reflect.ValueOf(splitList(value)))
	case field.Kind() == reflect.String:
		field.SetString(value)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownConfigKey, key)
	}
	return nil
}

// ToMap flattens the configuration into section.field keys. This is useful
// for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	root := reflect.ValueOf(c).Elem()
	rootType := root.Type()
	for i := 0; i < root.NumField(); i++ {
		section := yamlKey(rootType.Field(i))
		sectionValue := root.Field(i)
		sectionType := sectionValue.Type()

		for j := 0; j < sectionValue.NumField(); j++ {
			name := yamlKey(sectionType.Field(j))
			if name == "" {
				continue
			}
			result[section+"."+name] = formatValue(sectionValue.Field(j))
		}
	}

	return result
}

func (c *Config) lookup(key string) (reflect.Value, bool) {
	section, name, found := strings.Cut(key, ".")
	if !found {
		return reflect.Value{}, false
	}

	root := reflect.ValueOf(c).Elem()
	for i := 0; i < root.NumField(); i++ {
		if yamlKey(root.Type().Field(i)) != section {
			continue
		}
		sectionValue := root.Field(i)
		for j := 0; j < sectionValue.NumField(); j++ {
			if yamlKey(sectionValue.Type().Field(j)) == name {
				return sectionValue.Field(j), true
			}
		}
	}
	return reflect.Value{}, false
}

func yamlKey(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

func formatValue(v reflect.Value) string {
	if v.Type() == reflect.TypeOf(time.Duration(0)) {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(v.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.String:
		return v.String()
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
