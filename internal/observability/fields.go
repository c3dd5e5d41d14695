package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field helpers keep call sites free of a direct zap import.

// String constructs a field with the given key and value.
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int constructs a field with the given key and value.
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Float64 constructs a field with the given key and value.
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool constructs a field with the given key and value.
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Duration constructs a field with the given key and value.
func Duration(key string, value time.Duration) zap.Field { return zap.Duration(key, value) }

// Error is shorthand for zap.Error.
func Error(err error) zap.Field { return zap.Error(err) }
