package cfg

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Storage 解码后的配置树
// 实现了 ref.Convertable，可以作为构造参数延迟转换成具体的 Options 结构体
type Storage struct {
	data any
}

func NewStorage(data any) *Storage {
	return &Storage{data: data}
}

func (s *Storage) Data() any {
	return s.data
}

// Sub 按点分隔的路径获取子配置，例如 "database.host" 或 "tables.0.name"
func (s *Storage) Sub(key string) *Storage {
	if key == "" {
		return s
	}
	current := s.data
	for _, part := range strings.Split(key, ".") {
		switch v := current.(type) {
		case map[string]any:
			current = v[part]
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return NewStorage(nil)
			}
			current = v[idx]
		default:
			return NewStorage(nil)
		}
	}
	return NewStorage(current)
}

// ConvertTo 把配置树写入 object，object 必须是指针
func (s *Storage) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("object must be a non-nil pointer")
	}
	return convertValue(s.data, rv)
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	storageType  = reflect.TypeOf(&Storage{})
)

func convertValue(src any, dst reflect.Value) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	srcValue := reflect.ValueOf(src)

	// any 类型字段保留原始结构，交给下游按需转换
	if dst.Kind() == reflect.Interface && dst.Type().NumMethod() == 0 {
		switch src.(type) {
		case map[string]any, []any:
			dst.Set(reflect.ValueOf(NewStorage(src)))
		default:
			dst.Set(srcValue)
		}
		return nil
	}
	if dst.Type() == storageType.Elem() {
		dst.Set(reflect.ValueOf(*NewStorage(src)))
		return nil
	}

	if dst.Type() == durationType {
		return convertToDuration(srcValue, dst)
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(srcValue, dst)
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		return convertToSlice(srcValue, dst)
	case reflect.String:
		if srcValue.Kind() != reflect.String {
			dst.SetString(toString(src))
			return nil
		}
	case reflect.Bool:
		if srcValue.Kind() == reflect.String {
			b, err := strconv.ParseBool(srcValue.String())
			if err != nil {
				return errors.Wrapf(err, "invalid bool %q", srcValue.String())
			}
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if srcValue.Kind() == reflect.String {
			i, err := strconv.ParseInt(srcValue.String(), 0, dst.Type().Bits())
			if err != nil {
				return errors.Wrapf(err, "invalid int %q", srcValue.String())
			}
			dst.SetInt(i)
			return nil
		}
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}
	if isNumber(srcValue.Kind()) && isNumber(dst.Kind()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return reflect.ValueOf(v).String()
}

// convertToDuration 字符串按 time.ParseDuration 解析，整数视为纳秒，浮点数视为秒
func convertToDuration(src, dst reflect.Value) error {
	switch src.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(src.String())
		if err != nil {
			return errors.Wrapf(err, "failed to parse duration %q", src.String())
		}
		dst.SetInt(int64(d))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(src.Int())
		return nil
	case reflect.Float32, reflect.Float64:
		dst.SetInt(int64(src.Float() * float64(time.Second)))
		return nil
	}
	return errors.Errorf("cannot convert %v to time.Duration", src.Type())
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, key := range src.MapKeys() {
		item := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), item); err != nil {
			return errors.WithMessagef(err, "key %v", key.Interface())
		}
		k := reflect.ValueOf(toString(key.Interface()))
		dst.SetMapIndex(k.Convert(dst.Type().Key()), item)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		// 逗号分隔的字符串也可以转换为切片
		if src.Kind() == reflect.String {
			parts := strings.Split(src.String(), ",")
			items := make([]any, 0, len(parts))
			for _, p := range parts {
				items = append(items, strings.TrimSpace(p))
			}
			src = reflect.ValueOf(items)
		} else {
			return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
		}
	}
	slice := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := convertValue(src.Index(i).Interface(), slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	dst.Set(slice)
	return nil
}

func convertToStruct(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}

	values := map[string]reflect.Value{}
	for _, key := range src.MapKeys() {
		values[strings.ToLower(toString(key.Interface()))] = src.MapIndex(key)
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		if !dst.Field(i).CanSet() {
			continue
		}
		name := fieldKey(field)
		if name == "-" {
			continue
		}
		value, ok := values[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := convertValue(value.Interface(), dst.Field(i)); err != nil {
			return errors.WithMessagef(err, "field %s", field.Name)
		}
	}
	return nil
}

// fieldKey 字段在配置中的 key，优先 cfg tag，其次 json/yaml tag，最后字段名
func fieldKey(field reflect.StructField) string {
	for _, tagName := range []string{"cfg", "json", "yaml"} {
		if tag := field.Tag.Get(tagName); tag != "" {
			if name := strings.Split(tag, ",")[0]; name != "" {
				return name
			}
		}
	}
	return field.Name
}
