// Package logging builds the zerolog logger and adapts it to the
// key/value Logger used by the reminder core.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing to out. Unknown levels fall back to info.
func New(out io.Writer, level string, pretty bool) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Adapter implements reminders.Logger on top of zerolog.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter tags every entry with the component name.
func NewAdapter(logger zerolog.Logger, component string) *Adapter {
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, fields ...interface{}) {
	a.write(a.logger.Info(), msg, fields)
}

func (a *Adapter) Warn(msg string, fields ...interface{}) {
	a.write(a.logger.Warn(), msg, fields)
}

func (a *Adapter) Error(msg string, fields ...interface{}) {
	a.write(a.logger.Error(), msg, fields)
}

func (a *Adapter) Debug(msg string, fields ...interface{}) {
	a.write(a.logger.Debug(), msg, fields)
}

// write maps alternating key/value pairs onto the event. A trailing key
// without a value is logged under "extra".
func (a *Adapter) write(e *zerolog.Event, msg string, fields []interface{}) {
	if e == nil {
		return
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			e = e.Interface("extra", fields[i])
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		switch v := fields[i+1].(type) {
		case error:
			if key == "error" {
				e = e.Err(v)
			} else {
				e = e.AnErr(key, v)
			}
		case time.Duration:
			e = e.Dur(key, v)
		case time.Time:
			e = e.Time(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
