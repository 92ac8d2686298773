// Package logging wires shastity's numeric --verbosity option to
// logrus log levels, the way verbosity.py maps a 1-8 verbosity
// scale onto its own custom logging module's levels. Values increase
// with chattiness: 1 is
// CRITICAL-only, 8 is DEBUG-and-everything.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// levelVerbosity mirrors verbosity.py's _name_map: every verbosity
// value is the lowest threshold at which messages of that logrus
// level are shown.
var levelVerbosity = map[logrus.Level]int{
	logrus.PanicLevel: 1,
	logrus.FatalLevel: 1,
	logrus.ErrorLevel: 2,
	logrus.WarnLevel:  3,
	logrus.InfoLevel:  5,
	logrus.DebugLevel: 8,
	logrus.TraceLevel: 8,
}

// InvalidVerbosityError reports a --verbosity value with no
// corresponding logrus level.
type InvalidVerbosityError struct {
	Verbosity int
}

func (e InvalidVerbosityError) Error() string {
	return fmt.Sprintf("logging: invalid verbosity level %d", e.Verbosity)
}

// ToLevel returns the most verbose logrus level whose threshold does
// not exceed verbosity - i.e. the closest level that includes no more
// than the requested amount of detail.
func ToLevel(verbosity int) (logrus.Level, error) {
	best := logrus.Level(255)
	found := false

	for level, threshold := range levelVerbosity {
		if threshold <= verbosity {
			if !found || levelVerbosity[best] < threshold ||
				(levelVerbosity[best] == threshold && level > best) {
				best = level
				found = true
			}
		}
	}

	if !found {
		return 0, InvalidVerbosityError{Verbosity: verbosity}
	}
	return best, nil
}

// ToVerbosity is the inverse of ToLevel, returning the verbosity
// threshold associated with level.
func ToVerbosity(level logrus.Level) (int, error) {
	v, ok := levelVerbosity[level]
	if !ok {
		return 0, fmt.Errorf("logging: no verbosity mapping for level %v", level)
	}
	return v, nil
}

// Configure sets logrus's level from a --verbosity value, the way the
// registry command configures logrus from its config file's log
// level setting.
func Configure(verbosity int) error {
	level, err := ToLevel(verbosity)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}
