package log

import (
	"github.com/hatlonely/pgsearch/log/logger"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
)

// Namespace 日志器在 ref 注册表中的命名空间
const Namespace = "github.com/hatlonely/pgsearch/log/logger"

var (
	registry      = ref.NewRegistry()
	defaultLogger logger.Logger
)

func init() {
	registry.MustRegister(Namespace, "SLog", logger.NewSLogWithOptions)

	// 默认向终端输出 text 格式日志
	l, err := logger.NewSLogWithOptions(&logger.SLogOptions{Level: "info", Format: "text"})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = l
}

func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions 根据类型配置创建日志器，namespace 为空时使用本包的 SLog
func NewLoggerWithOptions(options *ref.TypeOptions) (logger.Logger, error) {
	if options == nil {
		return Default(), nil
	}
	o := *options
	if o.Namespace == "" {
		o.Namespace = Namespace
	}
	if o.Type == "" {
		o.Type = "SLog"
	}
	if o.Namespace == Namespace && o.Type == "SLog" && o.Options == nil {
		o.Options = &logger.SLogOptions{}
	}
	l, err := ref.NewT[logger.Logger](registry, &o)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create logger")
	}
	return l, nil
}
