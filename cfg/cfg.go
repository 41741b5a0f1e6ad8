package cfg

import (
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Load 读取配置文件并绑定到 object
// 依次执行：解码 -> 转换 -> 默认值 -> 校验
func Load(path string, object any) error {
	decoder, err := DecoderForFile(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	return LoadBytes(data, decoder, object)
}

func LoadBytes(data []byte, decoder Decoder, object any) error {
	storage, err := decoder.Decode(data)
	if err != nil {
		return err
	}
	return Bind(storage, object)
}

// Bind 把已解码的配置绑定到 object
func Bind(storage *Storage, object any) error {
	if err := storage.ConvertTo(object); err != nil {
		return errors.WithMessage(err, "failed to convert config")
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "failed to set defaults")
	}
	if err := ValidateStruct(object); err != nil {
		return errors.WithMessage(err, "failed to validate config")
	}
	return nil
}

// ValidateStruct 使用 validate tag 校验结构体，非结构体直接跳过
func ValidateStruct(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}
