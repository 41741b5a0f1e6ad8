package writer

import (
	"io"

	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
)

// Namespace 输出器在 ref 注册表中的命名空间
const Namespace = "github.com/hatlonely/pgsearch/log/writer"

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

var registry = ref.NewRegistry()

func init() {
	registry.MustRegister(Namespace, "ConsoleWriter", NewConsoleWriterWithOptions)
	registry.MustRegister(Namespace, "FileWriter", NewFileWriterWithOptions)
	registry.MustRegister(Namespace, "MultiWriter", NewMultiWriterWithOptions)
}

// NewWriterWithOptions 根据类型配置创建输出器，namespace 为空时使用本包
func NewWriterWithOptions(options *ref.TypeOptions) (Writer, error) {
	if options == nil {
		return nil, errors.New("writer options is nil")
	}
	if options.Namespace == "" {
		o := *options
		o.Namespace = Namespace
		options = &o
	}
	w, err := ref.NewT[Writer](registry, options)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create writer %s", options.Type)
	}
	return w, nil
}
