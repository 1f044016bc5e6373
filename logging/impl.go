package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

// LogEntry is a zap entry together with its structured fields.
type LogEntry struct {
	zapcore.Entry
	fields []zapcore.Field
}

// callerDepth counts the frames from getCaller up to whoever called a public logging method:
// getCaller, newEntry, sprint/sprintf/sprintw, Info/Infof/..., caller.
const callerDepth = 4

func (imp *impl) newEntry(level Level, msg string, fields []zapcore.Field) *LogEntry {
	entry := &LogEntry{fields: fields}
	entry.Time = time.Now()
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	entry.LoggerName = imp.name
	entry.Level = level.AsZap()
	entry.Message = msg
	entry.Caller = getCaller()
	return entry
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

// Sublogger shares appenders with its parent but gets its own level, starting at the parent's.
func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

// AsZap returns a zap logger whose output goes through this logger's appenders and level.
func (imp *impl) AsZap() *zap.SugaredLogger {
	return zap.New(&appenderCore{imp: imp}, zap.AddCaller()).Named(imp.name).Sugar()
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

func (imp *impl) write(entry *LogEntry) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) sprint(level Level, args []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.newEntry(level, fmt.Sprint(args...), nil))
	}
}

func (imp *impl) sprintf(level Level, template string, args []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.newEntry(level, fmt.Sprintf(template, args...), nil))
	}
}

func (imp *impl) sprintw(level Level, msg string, keysAndValues []interface{}) {
	if imp.enabled(level) {
		imp.write(imp.newEntry(level, msg, keyValueFields(keysAndValues)))
	}
}

// keyValueFields pairs up alternating keys and values. A trailing key without a value is kept
// with an error in place of the value.
func keyValueFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) { imp.sprint(DEBUG, args) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.sprintf(DEBUG, template, args) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.sprintw(DEBUG, msg, keysAndValues)
}

func (imp *impl) Info(args ...interface{}) { imp.sprint(INFO, args) }

func (imp *impl) Infof(template string, args ...interface{}) { imp.sprintf(INFO, template, args) }

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.sprintw(INFO, msg, keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) { imp.sprint(WARN, args) }

func (imp *impl) Warnf(template string, args ...interface{}) { imp.sprintf(WARN, template, args) }

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.sprintw(WARN, msg, keysAndValues)
}

func (imp *impl) Error(args ...interface{}) { imp.sprint(ERROR, args) }

func (imp *impl) Errorf(template string, args ...interface{}) { imp.sprintf(ERROR, template, args) }

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.sprintw(ERROR, msg, keysAndValues)
}

// Fatal, Fatalf and Fatalw log at ERROR and exit with status 1.
func (imp *impl) Fatal(args ...interface{}) {
	imp.sprint(ERROR, args)
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.sprintf(ERROR, template, args)
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.sprintw(ERROR, msg, keysAndValues)
	os.Exit(1)
}

func getCaller() zapcore.EntryCaller {
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(callerDepth)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}

// appenderCore adapts an impl to zapcore.Core so that AsZap loggers share appenders and level.
type appenderCore struct {
	imp    *impl
	fields []zapcore.Field
}

func (core *appenderCore) Enabled(level zapcore.Level) bool {
	return core.imp.enabled(levelFromZap(level))
}

func (core *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	return &appenderCore{imp: core.imp, fields: core.withFields(fields)}
}

func (core *appenderCore) withFields(fields []zapcore.Field) []zapcore.Field {
	all := make([]zapcore.Field, 0, len(core.fields)+len(fields))
	all = append(all, core.fields...)
	return append(all, fields...)
}

func (core *appenderCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if core.Enabled(entry.Level) {
		return checked.AddCore(entry, core)
	}
	return checked
}

func (core *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if core.imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	core.imp.write(&LogEntry{Entry: entry, fields: core.withFields(fields)})
	return nil
}

func (core *appenderCore) Sync() error {
	return core.imp.Sync()
}
