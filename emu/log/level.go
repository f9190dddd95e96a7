package log

import "gopkg.in/Sirupsen/logrus.v0"

// Level mirrors logrus levels: the lower, the more severe.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (lvl Level) String() string {
	return logrus.Level(lvl).String()
}
