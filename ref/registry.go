package ref

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// TypeOptions 通过 namespace + type 定位构造函数，Options 为构造参数
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type" validate:"required"`
	Options   any    `cfg:"options"`
}

// Convertable 配置数据的延迟转换接口
// 实现了此接口的 options 会在调用构造函数前转换为构造函数期望的参数类型
type Convertable interface {
	ConvertTo(object any) error
}

type constructor struct {
	originalFunc any
	newFunc      reflect.Value
	hasOptions   bool
	returnsError bool
}

func newConstructor(newFunc any) (*constructor, error) {
	funcValue := reflect.ValueOf(newFunc)
	if funcValue.Kind() != reflect.Func {
		return nil, errors.New("newFunc must be a function")
	}

	funcType := funcValue.Type()
	if funcType.NumIn() > 1 {
		return nil, errors.Errorf("newFunc must have 0 or 1 input parameters, got %d", funcType.NumIn())
	}
	if funcType.NumOut() != 1 && funcType.NumOut() != 2 {
		return nil, errors.Errorf("newFunc must have 1 or 2 return values, got %d", funcType.NumOut())
	}

	returnsError := false
	if funcType.NumOut() == 2 {
		errorInterface := reflect.TypeOf((*error)(nil)).Elem()
		if !funcType.Out(1).Implements(errorInterface) {
			return nil, errors.New("second return value must be error type")
		}
		returnsError = true
	}

	return &constructor{
		originalFunc: newFunc,
		newFunc:      funcValue,
		hasOptions:   funcType.NumIn() == 1,
		returnsError: returnsError,
	}, nil
}

func (c *constructor) new(options any) (any, error) {
	var args []reflect.Value
	if c.hasOptions {
		paramType := c.newFunc.Type().In(0)
		value, err := c.prepareOptions(paramType, options)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}

	results := c.newFunc.Call(args)
	if c.returnsError && !results[1].IsNil() {
		return nil, results[1].Interface().(error)
	}
	return results[0].Interface(), nil
}

// prepareOptions 把任意 options 适配为构造函数的参数类型
func (c *constructor) prepareOptions(paramType reflect.Type, options any) (reflect.Value, error) {
	if options == nil {
		// 允许 nil 指针参数，由构造函数自行处理默认值
		if paramType.Kind() == reflect.Ptr || paramType.Kind() == reflect.Interface {
			return reflect.Zero(paramType), nil
		}
		return reflect.Value{}, errors.New("constructor requires options but got nil")
	}

	if convertable, ok := options.(Convertable); ok {
		if paramType.Kind() == reflect.Ptr {
			target := reflect.New(paramType.Elem())
			if err := convertable.ConvertTo(target.Interface()); err != nil {
				return reflect.Value{}, errors.WithMessagef(err, "failed to convert options to %v", paramType)
			}
			return target, nil
		}
		target := reflect.New(paramType)
		if err := convertable.ConvertTo(target.Interface()); err != nil {
			return reflect.Value{}, errors.WithMessagef(err, "failed to convert options to %v", paramType)
		}
		return target.Elem(), nil
	}

	value := reflect.ValueOf(options)
	if !value.Type().AssignableTo(paramType) {
		return reflect.Value{}, errors.Errorf("options type %T is not assignable to %v", options, paramType)
	}
	return value, nil
}

// Registry 构造函数注册表
// 在程序装配阶段注册，之后只读，可以被多个组件共享
type Registry struct {
	constructors sync.Map
}

func NewRegistry() *Registry {
	return &Registry{}
}

func key(namespace string, type_ string) string {
	return namespace + ":" + type_
}

func (r *Registry) Register(namespace string, type_ string, newFunc any) error {
	k := key(namespace, type_)

	if existing, ok := r.constructors.Load(k); ok {
		// 相同的函数重复注册直接跳过
		if reflect.ValueOf(existing.(*constructor).originalFunc).Pointer() == reflect.ValueOf(newFunc).Pointer() {
			return nil
		}
		return errors.Errorf("constructor for %s already registered with different function", k)
	}

	c, err := newConstructor(newFunc)
	if err != nil {
		return errors.WithMessagef(err, "failed to register %s", k)
	}
	r.constructors.Store(k, c)
	return nil
}

func (r *Registry) MustRegister(namespace string, type_ string, newFunc any) {
	if err := r.Register(namespace, type_, newFunc); err != nil {
		panic(err)
	}
}

func (r *Registry) New(namespace string, type_ string, options any) (any, error) {
	value, ok := r.constructors.Load(key(namespace, type_))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", key(namespace, type_))
	}
	return value.(*constructor).new(options)
}

// NewWithOptions 根据 TypeOptions 创建对象
func (r *Registry) NewWithOptions(options *TypeOptions) (any, error) {
	if options == nil {
		return nil, errors.New("type options is nil")
	}
	return r.New(options.Namespace, options.Type, options.Options)
}

// Has 判断是否注册过
func (r *Registry) Has(namespace string, type_ string) bool {
	_, ok := r.constructors.Load(key(namespace, type_))
	return ok
}

// NewT 创建对象并断言为类型 T
func NewT[T any](r *Registry, options *TypeOptions) (T, error) {
	var zero T
	obj, err := r.NewWithOptions(options)
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("created object %T is not of type %T", obj, zero)
	}
	return result, nil
}
