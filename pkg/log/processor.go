package log

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/mwantia/fabric/pkg/container"
)

// LoggerTagProcessor handles fabric:"logger" and fabric:"logger:<name>" tags
// for automatic logger injection with optional named loggers.
//
// Supported tag formats:
//   - `fabric:"logger"` - Injects the base logger service
//   - `fabric:"logger:<name>"` - Injects a named logger (e.g., logger.Named("catalog"))
type LoggerTagProcessor struct{}

func NewLoggerTagProcessor() *LoggerTagProcessor {
	return &LoggerTagProcessor{}
}

// GetPriority returns the processing priority for this processor.
// It runs before the default inject processor (priority 0).
func (ltp *LoggerTagProcessor) GetPriority() int {
	return 50
}

// CanProcess reports whether value is a logger tag. Matching is case-insensitive.
func (ltp *LoggerTagProcessor) CanProcess(value string) bool {
	return strings.EqualFold(value, "logger") || strings.HasPrefix(strings.ToLower(value), "logger:")
}

// Process resolves the base LoggerService from the container and, when the
// tag carries a name, returns base.Named(name).
func (ltp *LoggerTagProcessor) Process(ctx context.Context, sc *container.ServiceContainer, field reflect.StructField, value string) (any, error) {
	ok, resolved := sc.ResolveByType(ctx, reflect.TypeOf((*LoggerService)(nil)).Elem())
	if !ok {
		return nil, fmt.Errorf("failed to resolve LoggerService for field '%s': no logger service registered", field.Name)
	}

	baseLogger, ok := resolved.(LoggerService)
	if !ok {
		return nil, fmt.Errorf("resolved logger is not a LoggerService for field '%s'", field.Name)
	}

	loggerName := ""
	if parts := strings.SplitN(value, ":", 2); len(parts) == 2 {
		loggerName = strings.TrimSpace(parts[1])
	}

	if loggerName != "" {
		return baseLogger.Named(loggerName), nil
	}

	return baseLogger, nil
}

// Inject walks the exported fields of the struct pointed to by target and
// assigns a logger to every LoggerService field carrying a logger tag.
func (ltp *LoggerTagProcessor) Inject(ctx context.Context, sc *container.ServiceContainer, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("logger injection requires a struct pointer, got %T", target)
	}

	elem := rv.Elem()
	loggerType := reflect.TypeOf((*LoggerService)(nil)).Elem()

	for i := 0; i < elem.NumField(); i++ {
		field := elem.Type().Field(i)
		tag, ok := field.Tag.Lookup("fabric")
		if !ok || !ltp.CanProcess(tag) {
			continue
		}
		if !field.IsExported() || field.Type != loggerType {
			return fmt.Errorf("field '%s' tagged '%s' must be an exported LoggerService", field.Name, tag)
		}

		resolved, err := ltp.Process(ctx, sc, field, tag)
		if err != nil {
			return err
		}
		elem.Field(i).Set(reflect.ValueOf(resolved))
	}

	return nil
}
