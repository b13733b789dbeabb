package logging

// keyValuePairSize represents the number of elements in a key-value pair.
const keyValuePairSize = 2

// Adapter exposes a Logger through loosely typed key-value pairs, for
// components that take a minimal logging interface instead of zap fields.
type Adapter struct {
	log Logger
}

// NewAdapter creates a new logger adapter.
func NewAdapter(log Logger) *Adapter {
	return &Adapter{log: log}
}

// Info logs an info message with key-value pairs.
func (a *Adapter) Info(msg string, keysAndValues ...any) {
	a.log.Info(msg, toFields(keysAndValues)...)
}

// Error logs an error message with key-value pairs.
func (a *Adapter) Error(msg string, keysAndValues ...any) {
	a.log.Error(msg, toFields(keysAndValues)...)
}

// Warn logs a warning message with key-value pairs.
func (a *Adapter) Warn(msg string, keysAndValues ...any) {
	a.log.Warn(msg, toFields(keysAndValues)...)
}

// Debug logs a debug message with key-value pairs.
func (a *Adapter) Debug(msg string, keysAndValues ...any) {
	a.log.Debug(msg, toFields(keysAndValues)...)
}

// toFields converts key-value pairs to a Field slice. Keys that are not
// strings and trailing unpaired values are dropped.
func toFields(keysAndValues []any) []Field {
	fields := make([]Field, 0, len(keysAndValues)/keyValuePairSize)
	for i := 0; i < len(keysAndValues); i += keyValuePairSize {
		if i+1 >= len(keysAndValues) {
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, Any(key, keysAndValues[i+1]))
	}
	return fields
}
