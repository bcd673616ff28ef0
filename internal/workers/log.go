package workers

import "log"

// namedLogger prefixes every line with the worker's name, grounded on
// the teacher's internal/server/cleanup.go worker-name log-prefix
// convention (that file has since been adapted away but the prefix
// style survives here).
type namedLogger struct {
	name string
}

func newLogger(name string) *namedLogger {
	return &namedLogger{name: name}
}

func (l *namedLogger) Infof(format string, args ...interface{}) {
	log.Printf("["+l.name+"] "+format, args...)
}

func (l *namedLogger) Warnf(format string, args ...interface{}) {
	log.Printf("["+l.name+"] WARN "+format, args...)
}
