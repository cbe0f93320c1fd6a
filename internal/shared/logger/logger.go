package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrObj — объект ошибки для ERROR-записей
type ErrObj struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack,omitempty"`
}

// Entry — единая схема лог-записи: action + message + произвольные поля
type Entry struct {
	Action     string
	Message    string
	RequestID  string
	Error      *ErrObj
	Additional map[string]any
}

// Logger пишет структурированные JSON-логи через zerolog
type Logger struct {
	zl zerolog.Logger
}

// New создает логгер для сервиса.
// level: debug|info|warn|error, format: json|console
func New(service, level, format string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var out = zerolog.New(os.Stdout)
	if strings.EqualFold(format, "console") {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	hostname, _ := os.Hostname()

	zl := out.Level(lvl).With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname).
		Logger()

	return &Logger{zl: zl}
}

// NewNop возвращает логгер, который ничего не пишет (для тестов)
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) Debug(e Entry) { l.emit(l.zl.Debug(), e) }
func (l *Logger) Info(e Entry)  { l.emit(l.zl.Info(), e) }
func (l *Logger) Warn(e Entry)  { l.emit(l.zl.Warn(), e) }
func (l *Logger) Error(e Entry) { l.emit(l.zl.Error(), e) }

// Fatal логирует и завершает процесс
func (l *Logger) Fatal(e Entry) { l.emit(l.zl.Fatal(), e) }

func (l *Logger) emit(ev *zerolog.Event, e Entry) {
	if e.Action != "" {
		ev = ev.Str("action", e.Action)
	}
	if e.RequestID != "" {
		ev = ev.Str("request_id", e.RequestID)
	}
	if e.Error != nil {
		ev = ev.Str("error", e.Error.Msg)
		if e.Error.Stack != "" {
			ev = ev.Str("stack", e.Error.Stack)
		}
	}
	for k, v := range e.Additional {
		ev = ev.Interface(k, v)
	}
	ev.Msg(e.Message)
}
