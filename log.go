// log.go - structured logging wiring, in the shape storj-storj uses zap.

package filedb

import "go.uber.org/zap"

// defaultLogger is used whenever a Config leaves Logger nil. It is a no-op
// sink so the library never forces output on embedders that don't configure
// one, matching the teacher's opt-in DebugConversion flag in spirit.
var defaultLogger = zap.NewNop().Sugar()

func namedLogger(l *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if l == nil {
		l = defaultLogger
	}
	return l.Named(name)
}
