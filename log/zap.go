package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var stderr zapcore.WriteSyncer = os.Stderr

// ShortString is implemented by identifiers with an abbreviated log form.
type ShortString interface {
	ShortString() string
}

// ZShortStringer logs the abbreviated form of the value.
func ZShortStringer(name string, val ShortString) zap.Field {
	return zap.String(name, val.ShortString())
}

// ZShortStringers logs abbreviated forms of every value.
func ZShortStringers[T ShortString](name string, vals []T) zap.Field {
	return zap.Array(name, zapcore.ArrayMarshalerFunc(func(enc zapcore.ArrayEncoder) error {
		for _, val := range vals {
			enc.AppendString(val.ShortString())
		}
		return nil
	}))
}
