package searchable

import (
	"context"
	"fmt"
	"time"

	"github.com/hatlonely/pgsearch/log"
	"github.com/hatlonely/pgsearch/log/logger"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ObservableOptions struct {
	// Logger 日志记录器配置
	Logger *ref.TypeOptions `cfg:"logger"`

	// EnableMetrics 是否启用指标收集
	EnableMetrics bool `cfg:"enableMetrics" def:"true"`

	// EnableLogging 是否启用日志记录
	EnableLogging bool `cfg:"enableLogging" def:"true"`

	// EnableTracing 是否启用分布式追踪
	EnableTracing bool `cfg:"enableTracing" def:"false"`

	// Name 组件名称，作为指标名前缀、日志的 component 字段和 span 的 component 属性
	Name string `cfg:"name" def:"searchable"`

	// Registerer 指标注册位置，为空时注册到默认 registry
	Registerer prometheus.Registerer `cfg:"-"`
}

// ObservableMetrics 同步和检索操作的 prometheus 指标
type ObservableMetrics struct {
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	activeOperations  *prometheus.GaugeVec
	resultSize        *prometheus.HistogramVec
}

func NewObservableMetrics(name string, registerer prometheus.Registerer) (*ObservableMetrics, error) {
	metrics := &ObservableMetrics{
		operationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_operations_total",
				Help: "Total number of searchable operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_operation_duration_seconds",
				Help:    "Duration of searchable operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"operation"},
		),
		activeOperations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_active_operations",
				Help: "Number of active searchable operations",
			},
			[]string{"operation"},
		),
		resultSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_result_size",
				Help:    "Number of records returned by search or visited by reindex",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		metrics.operationCounter,
		metrics.operationDuration,
		metrics.activeOperations,
		metrics.resultSize,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.Wrapf(err, "failed to register metrics %s", name)
		}
	}
	return metrics, nil
}

// ObservableBehavior 装饰器，为同步行为添加指标、日志和追踪
// 挂到源表上的是装饰器本身，源表回调也会被观测
type ObservableBehavior struct {
	behavior *Behavior

	logger        logger.Logger
	metrics       *ObservableMetrics
	tracer        trace.Tracer
	name          string
	enableMetrics bool
	enableLogging bool
	enableTracing bool
}

func NewObservableBehaviorWithOptions(behavior *Behavior, options *ObservableOptions) (*ObservableBehavior, error) {
	if behavior == nil {
		return nil, errors.New("behavior is nil")
	}
	if options == nil {
		return nil, errors.New("options is nil")
	}

	obs := &ObservableBehavior{
		behavior:      behavior,
		name:          options.Name,
		enableMetrics: options.EnableMetrics,
		enableLogging: options.EnableLogging,
		enableTracing: options.EnableTracing,
	}
	if obs.name == "" {
		obs.name = "searchable"
	}

	if options.EnableLogging {
		l, err := log.NewLoggerWithOptions(options.Logger)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create logger")
		}
		obs.logger = l.WithGroup("observableBehavior")
	}

	if options.EnableMetrics {
		metrics, err := NewObservableMetrics(obs.name, options.Registerer)
		if err != nil {
			return nil, err
		}
		obs.metrics = metrics
	}

	if options.EnableTracing {
		obs.tracer = otel.Tracer(fmt.Sprintf("searchable.%s", obs.name))
	}

	return obs, nil
}

// Attach 把装饰器挂到源表上
func (obs *ObservableBehavior) Attach() *ObservableBehavior {
	obs.behavior.source.AddBehavior(obs)
	return obs
}

func (obs *ObservableBehavior) Behavior() *Behavior {
	return obs.behavior
}

// observeOperation 统一的操作观测逻辑
// size 不为空时在操作完成后记录结果数量
func (obs *ObservableBehavior) observeOperation(ctx context.Context, operation string, size func() int, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if obs.enableTracing && obs.tracer != nil {
		ctx, span = obs.tracer.Start(ctx, fmt.Sprintf("searchable.%s", operation),
			trace.WithAttributes(
				attribute.String("component", obs.name),
				attribute.String("operation", operation),
				attribute.String("source", obs.behavior.source.Name()),
				attribute.String("target", obs.behavior.target.Name()),
			),
		)
		defer span.End()
	}

	if obs.enableMetrics && obs.metrics != nil {
		obs.metrics.activeOperations.WithLabelValues(operation).Inc()
		defer obs.metrics.activeOperations.WithLabelValues(operation).Dec()
	}

	err := fn(ctx)
	duration := time.Since(start)

	if obs.enableTracing && span != nil {
		span.SetAttributes(attribute.Int64("duration_ms", duration.Milliseconds()))
		if size != nil {
			span.SetAttributes(attribute.Int("result_size", size()))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if obs.enableMetrics && obs.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		obs.metrics.operationCounter.WithLabelValues(operation, status).Inc()
		obs.metrics.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
		if size != nil && err == nil {
			obs.metrics.resultSize.WithLabelValues(operation).Observe(float64(size()))
		}
	}

	if obs.enableLogging && obs.logger != nil {
		if err != nil {
			obs.logger.ErrorContext(ctx, "searchable operation failed",
				"component", obs.name,
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
				"error", err.Error(),
			)
		} else {
			obs.logger.InfoContext(ctx, "searchable operation completed",
				"component", obs.name,
				"operation", operation,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}

	return err
}

func (obs *ObservableBehavior) AfterSave(ctx context.Context, entity *orm.Entity) error {
	return obs.observeOperation(ctx, "after_save", nil, func(ctx context.Context) error {
		return obs.behavior.AfterSave(ctx, entity)
	})
}

func (obs *ObservableBehavior) AfterDelete(ctx context.Context, entity *orm.Entity) error {
	return obs.observeOperation(ctx, "after_delete", nil, func(ctx context.Context) error {
		return obs.behavior.AfterDelete(ctx, entity)
	})
}

func (obs *ObservableBehavior) IndexEntity(ctx context.Context, entity *orm.Entity) error {
	return obs.observeOperation(ctx, "index", nil, func(ctx context.Context) error {
		return obs.behavior.IndexEntity(ctx, entity)
	})
}

func (obs *ObservableBehavior) DeindexEntity(ctx context.Context, entity *orm.Entity) error {
	return obs.observeOperation(ctx, "deindex", nil, func(ctx context.Context) error {
		return obs.behavior.DeindexEntity(ctx, entity)
	})
}

func (obs *ObservableBehavior) Search(ctx context.Context, opts FtsOptions) ([]*orm.Entity, error) {
	var result []*orm.Entity
	err := obs.observeOperation(ctx, "search", func() int { return len(result) }, func(ctx context.Context) error {
		var searchErr error
		result, searchErr = obs.behavior.Search(ctx, opts)
		return searchErr
	})
	return result, err
}

func (obs *ObservableBehavior) Reindex(ctx context.Context) (ReindexResult, error) {
	var result ReindexResult
	err := obs.observeOperation(ctx, "reindex", func() int { return result.Total() }, func(ctx context.Context) error {
		var reindexErr error
		result, reindexErr = obs.behavior.Reindex(ctx)
		return reindexErr
	})
	return result, err
}
