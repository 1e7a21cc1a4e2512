package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Merge lays overrides over base. Nested sections are merged key by key
// and null values leave the base value in place.
func Merge(base Config, overrides map[string]interface{}) (*Config, error) {
	tree, err := toTree(base)
	if err != nil {
		return nil, err
	}
	mergeTree(tree, overrides)

	raw, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "encode merged config")
	}
	merged := Config{}
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return nil, errors.Wrap(err, "decode merged config")
	}
	return &merged, nil
}

// LoadOverrides reads a YAML or JSON override file.
func LoadOverrides(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read overrides %s", path)
	}
	overrides := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.Wrapf(err, "parse overrides %s", path)
	}
	return overrides, nil
}

func toTree(c Config) (map[string]interface{}, error) {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	tree := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrap(err, "decode config tree")
	}
	return tree, nil
}

func mergeTree(dst, src map[string]interface{}) {
	for k, v := range src {
		if v == nil {
			continue
		}
		if sub, ok := asMap(v); ok {
			if cur, ok := asMap(dst[k]); ok {
				mergeTree(cur, sub)
				dst[k] = cur
				continue
			}
			dst[k] = sub
			continue
		}
		dst[k] = v
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
