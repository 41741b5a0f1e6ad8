package cfg

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Decoder 把配置文件内容解码为 Storage
type Decoder interface {
	Decode(data []byte) (*Storage, error)
}

type YamlDecoder struct{}

func (YamlDecoder) Decode(data []byte) (*Storage, error) {
	var result any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode YAML")
	}
	return NewStorage(normalize(result)), nil
}

type JsonDecoder struct{}

func (JsonDecoder) Decode(data []byte) (*Storage, error) {
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON")
	}
	return NewStorage(result), nil
}

type TomlDecoder struct{}

func (TomlDecoder) Decode(data []byte) (*Storage, error) {
	var result map[string]any
	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(err, "failed to decode TOML")
	}
	return NewStorage(normalize(result)), nil
}

// DecoderForFile 根据文件扩展名选择解码器
func DecoderForFile(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YamlDecoder{}, nil
	case ".json":
		return JsonDecoder{}, nil
	case ".toml":
		return TomlDecoder{}, nil
	}
	return nil, errors.Errorf("unsupported config file format: %s", path)
}

// normalize 统一嵌套结构为 map[string]any / []any
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[toString(k)] = normalize(item)
		}
		return m
	case []map[string]any:
		items := make([]any, 0, len(val))
		for _, item := range val {
			items = append(items, normalize(item))
		}
		return items
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	}
	return v
}
