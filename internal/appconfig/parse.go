package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when the bytes do not parse into the expected shape.
var ErrMalformed = errors.New("malformed configuration")

// Format identifies the on-disk encoding of a configuration file.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from the file extension. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes data in the given format and applies defaults. It does not
// run business-rule validation; see Config.Validate.
//
// Keys match exactly. Unknown keys are ignored. An explicit null is accepted
// only for the optional server and database sections.
func Parse(format Format, data []byte) (*Config, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrMalformed)
	}

	var (
		root rawObject
		err  error
	)
	switch format {
	case FormatYAML:
		root, err = yamlRoot(data)
	case FormatJSON:
		root, err = jsonRoot(data)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg, err := build(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return cfg, nil
}

// rawValue is one undecoded value from either format.
type rawValue interface {
	null() bool
	decode(v any) error
	object() (rawObject, error)
}

// rawObject maps exact key spellings to undecoded values.
type rawObject map[string]rawValue

type jsonValue json.RawMessage

func (v jsonValue) null() bool { return bytes.Equal(bytes.TrimSpace(v), []byte("null")) }

func (v jsonValue) decode(dst any) error { return json.Unmarshal(v, dst) }

func (v jsonValue) object() (rawObject, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	obj := make(rawObject, len(m))
	for k, raw := range m {
		obj[k] = jsonValue(raw)
	}
	return obj, nil
}

// jsonRoot decodes exactly one JSON value and rejects trailing content.
func jsonRoot(data []byte) (rawObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing characters after top-level value")
	}
	return jsonValue(raw).object()
}

type yamlValue struct{ n *yaml.Node }

func (v yamlValue) null() bool { return v.n.ShortTag() == "!!null" }

func (v yamlValue) decode(dst any) error { return v.n.Decode(dst) }

func (v yamlValue) object() (rawObject, error) {
	var m map[string]yaml.Node
	if err := v.n.Decode(&m); err != nil {
		return nil, err
	}
	return yamlObject(m), nil
}

func yamlObject(m map[string]yaml.Node) rawObject {
	obj := make(rawObject, len(m))
	for k, n := range m {
		obj[k] = yamlValue{n: &n}
	}
	return obj
}

func yamlRoot(data []byte) (rawObject, error) {
	var m map[string]yaml.Node
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return yamlObject(m), nil
}

// required decodes obj[key] into dst. Absent and null are errors.
func required(obj rawObject, prefix, key string, dst any) error {
	v, ok := obj[key]
	if !ok {
		return fmt.Errorf("missing field `%s%s`", prefix, key)
	}
	return decodeValue(v, prefix+key, dst)
}

// optional decodes obj[key] into dst when present. Null is an error.
func optional(obj rawObject, prefix, key string, dst any) error {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	return decodeValue(v, prefix+key, dst)
}

func decodeValue(v rawValue, name string, dst any) error {
	if v.null() {
		return fmt.Errorf("invalid type: null for field `%s`", name)
	}
	if err := v.decode(dst); err != nil {
		return fmt.Errorf("field `%s`: %v", name, err)
	}
	return nil
}

// section returns the nested object at key, or nil when absent or null.
func section(obj rawObject, key string) (rawObject, error) {
	v, ok := obj[key]
	if !ok || v.null() {
		return nil, nil
	}
	sub, err := v.object()
	if err != nil {
		return nil, fmt.Errorf("field `%s`: %v", key, err)
	}
	return sub, nil
}

func build(root rawObject) (*Config, error) {
	cfg := &Config{
		Environment: DefaultEnvironment,
		Features:    map[string]bool{},
	}
	if err := required(root, "", "app_name", &cfg.AppName); err != nil {
		return nil, err
	}
	if err := required(root, "", "version", &cfg.Version); err != nil {
		return nil, err
	}
	if err := optional(root, "", "environment", &cfg.Environment); err != nil {
		return nil, err
	}

	if v, ok := root["features"]; ok {
		if v.null() {
			return nil, errors.New("invalid type: null for field `features`")
		}
		features, err := v.object()
		if err != nil {
			return nil, fmt.Errorf("field `features`: %v", err)
		}
		for name, fv := range features {
			var on bool
			if err := decodeValue(fv, "features."+name, &on); err != nil {
				return nil, err
			}
			cfg.Features[name] = on
		}
	}

	srv, err := section(root, "server")
	if err != nil {
		return nil, err
	}
	if srv != nil {
		cfg.Server = &ServerConfig{EnableSSL: DefaultEnableSSL}
		if err := required(srv, "server.", "host", &cfg.Server.Host); err != nil {
			return nil, err
		}
		if err := required(srv, "server.", "port", &cfg.Server.Port); err != nil {
			return nil, err
		}
		if err := optional(srv, "server.", "enable_ssl", &cfg.Server.EnableSSL); err != nil {
			return nil, err
		}
	}

	db, err := section(root, "database")
	if err != nil {
		return nil, err
	}
	if db != nil {
		cfg.Database = &DatabaseConfig{
			PoolSize:       DefaultPoolSize,
			TimeoutSeconds: DefaultTimeoutSeconds,
		}
		if err := required(db, "database.", "connection_string", &cfg.Database.ConnectionString); err != nil {
			return nil, err
		}
		if err := optional(db, "database.", "pool_size", &cfg.Database.PoolSize); err != nil {
			return nil, err
		}
		if err := optional(db, "database.", "timeout_seconds", &cfg.Database.TimeoutSeconds); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Loader turns raw file content into a validated Config. Implementations
// report shape problems with an error wrapping ErrMalformed and rule
// violations with a *ValidationError.
type Loader interface {
	Load(data []byte) (*Config, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(data []byte) (*Config, error)

// Load calls f(data).
func (f LoaderFunc) Load(data []byte) (*Config, error) { return f(data) }

// NewLoader returns a Loader that parses the given format and validates.
func NewLoader(format Format) Loader {
	return LoaderFunc(func(data []byte) (*Config, error) {
		cfg, err := Parse(format, data)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
}

// ForPath returns the Loader matching the file extension of path.
func ForPath(path string) Loader {
	return NewLoader(FormatForPath(path))
}
