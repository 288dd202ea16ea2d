package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SetValue sets a configuration value by key.
// Supported keys are the yaml names of the settings section plus store.uri.
func (c *Config) SetValue(key, value string) error {
	if key == "store.uri" {
		c.Store.URI = value
		return nil
	}
	field, ok := settingsField(&c.Settings, key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	switch field.Interface().(type) {
	case string:
		field.SetString(value)
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		field.SetInt(int64(n))
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		field.SetInt(int64(d))
	default:
		return fmt.Errorf("unsupported configuration key: %s", key)
	}
	return nil
}

// GetValue returns the value of key as a string.
func (c *Config) GetValue(key string) (string, error) {
	if key == "store.uri" {
		return c.Store.URI, nil
	}
	field, ok := settingsField(&c.Settings, key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return fmt.Sprint(field.Interface()), nil
}

// Keys lists the keys accepted by GetValue and SetValue, sorted.
func (c *Config) Keys() []string {
	keys := []string{"store.uri"}
	t := reflect.TypeOf(c.Settings)
	for i := 0; i < t.NumField(); i++ {
		if name := yamlName(t.Field(i)); name != "" {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

// ToMap flattens the settings and the store URI into key/value strings.
// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	for _, key := range c.Keys() {
		v, err := c.GetValue(key)
		if err == nil {
			result[key] = v
		}
	}
	return result
}

func settingsField(s *Settings, key string) (reflect.Value, bool) {
	v := reflect.ValueOf(s).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if yamlName(t.Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// yamlName handles yaml tags with options (e.g., "log_file,omitempty").
func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}
