package utils

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log is the application-wide logger. Packages log through it directly;
// request paths attach context with Log.WithField.
var Log *logrus.Logger

func init() {
	Log = logrus.New()
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	Log.SetOutput(os.Stdout)
	Log.SetLevel(logrus.InfoLevel)
}

// ConfigureLogger applies the [log] config section: level name and an
// optional file mirrored alongside stdout. An unknown level keeps the
// default rather than failing startup.
func ConfigureLogger(level, file string) {
	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			Log.SetLevel(lvl)
		} else {
			Log.Warnf("Unknown log level %q, keeping %s", level, Log.GetLevel())
		}
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			Log.Warnf("Cannot open log file %s: %v", file, err)
			return
		}
		Log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
}
