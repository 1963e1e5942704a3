// Package config loads YAML configuration files and applies environment
// variable overrides declared with `env` struct tags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads a YAML configuration file into out, expanding ${VAR}
// references first and applying `env` tag overrides afterwards.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return ApplyEnv(out)
}

// LoadOrDefault behaves like Load but leaves out untouched (apart from env
// overrides) when path does not exist or is empty.
func LoadOrDefault(path string, out any) error {
	if path == "" {
		return ApplyEnv(out)
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ApplyEnv(out)
	}
	return Load(path, out)
}

// ApplyEnv sets struct fields from the environment variables named by their
// `env` tags. Nested structs are walked recursively.
func ApplyEnv(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("apply env: expected non-nil pointer, got %T", v)
	}
	return applyEnvOverrides(val.Elem())
}

func applyEnvOverrides(val reflect.Value) error {
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if fieldVal.Kind() == reflect.Struct {
			if err := applyEnvOverrides(fieldVal); err != nil {
				return err
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envVal, ok := os.LookupEnv(envTag)
		if !ok {
			continue
		}
		if err := setField(fieldVal, envVal); err != nil {
			return fmt.Errorf("env %s: %w", envTag, err)
		}
	}
	return nil
}

func setField(fieldVal reflect.Value, envVal string) error {
	if fieldVal.Type() == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(envVal))
		if err != nil {
			return err
		}
		fieldVal.SetInt(int64(d))
		return nil
	}

	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(envVal)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(envVal), 10, 64)
		if err != nil {
			return err
		}
		fieldVal.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(envVal), 64)
		if err != nil {
			return err
		}
		fieldVal.SetFloat(f)
	case reflect.Bool:
		fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
	case reflect.Slice:
		if fieldVal.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fieldVal.Type())
		}
		var parts []string
		for _, p := range strings.Split(envVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		fieldVal.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", fieldVal.Kind())
	}
	return nil
}
