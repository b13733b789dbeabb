package classifier

// Logger is the logging interface used by the classification pipeline.
// logging.NewAdapter bridges the engine's structured logger to it.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
