// Package lol (log of location) prints log lines with a high precision
// timestamp, a colored level tag and the source location of the call, and
// drops lines above the current level.
package lol

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
)

const (
	Off = iota
	Fatal
	Error
	Warn
	Info
	Debug
	Trace
)

var LevelNames = []string{"off", "fatal", "error", "warn", "info", "debug", "trace"}

type (
	// Ln prints its arguments separated by spaces.
	Ln func(a ...any)
	// F prints like fmt.Printf.
	F func(format string, a ...any)
	// S prints a spew dump of its arguments.
	S func(a ...any)
	// C prints the result of closure, which is only called when the level is
	// enabled.
	C func(closure func() string)
	// Chk prints a non-nil error and reports whether there was one.
	Chk func(e error) bool
	// Err builds an error like fmt.Errorf, prints it and returns it.
	Err func(format string, a ...any) error

	// LevelPrinter is the set of printers of one level.
	LevelPrinter struct {
		Ln
		F
		S
		C
		Chk
		Err
	}
)

type levelSpec struct {
	tag   string
	color func(a ...any) string
}

var specs = [...]levelSpec{
	Off:   {"", func(...any) string { return "" }},
	Fatal: {"FTL", color.New(color.BgRed, color.FgHiWhite).Sprint},
	Error: {"ERR", color.New(color.FgHiRed).Sprint},
	Warn:  {"WRN", color.New(color.FgHiYellow).Sprint},
	Info:  {"INF", color.New(color.FgHiGreen).Sprint},
	Debug: {"DBG", color.New(color.FgHiBlue).Sprint},
	Trace: {"TRC", color.New(color.FgHiMagenta).Sprint},
}

var locColor = color.New(color.FgBlue).Sprint

// NoTimeStamp leaves the timestamp off each line, for output a supervisor
// already timestamps.
var NoTimeStamp atomic.Bool

// Level is the highest level that is printed.
var Level atomic.Int32

type (
	// Log has the printers of each level.
	Log struct{ F, E, W, I, D, T LevelPrinter }
	// Check has the error checkers of each level.
	Check struct{ F, E, W, I, D, T Chk }
	// Errorf has the error constructors of each level.
	Errorf struct{ F, E, W, I, D, T Err }
	// Logger bundles the printers, checkers and error constructors.
	Logger struct {
		*Log
		*Check
		*Errorf
	}
)

// Main is the logger the log, chk and errorf packages use.
var Main = &Logger{}

// sink lets SetWriter redirect printers that were already handed out.
var sink = &lockedWriter{w: os.Stderr}

type lockedWriter struct {
	sync.Mutex
	w io.Writer
}

func (s *lockedWriter) Write(p []byte) (int, error) {
	s.Lock()
	defer s.Unlock()
	return s.w.Write(p)
}

func init() {
	Main.Log, Main.Check, Main.Errorf = New(sink)
	SetLoggers(Info)
}

// SetWriter redirects all output of the Main logger.
func SetWriter(w io.Writer) {
	sink.Lock()
	sink.w = w
	sink.Unlock()
}

// SetLoggers sets the level; out of range levels mean Info.
func SetLoggers(level int) {
	if level < Off || level > Trace {
		level = Info
	}
	Level.Store(int32(level))
	Main.Log.T.F("log level %s", specs[level].color(LevelNames[level]))
}

// GetLogLevel returns the level named level, or Info for an unknown name.
func GetLogLevel(level string) int {
	for i, name := range LevelNames {
		if strings.EqualFold(level, name) {
			return i
		}
	}
	return Info
}

// SetLogLevel sets the level by name.
func SetLogLevel(level string) { SetLoggers(GetLogLevel(level)) }

type printer struct {
	level int32
	w     io.Writer
}

func (p printer) enabled() bool { return Level.Load() >= p.level }

// emit is only called from the closures of a LevelPrinter, so the caller of
// interest is two frames up.
func (p printer) emit(text string) {
	var ts string
	if !NoTimeStamp.Load() {
		ts = time.Now().Format("2006-01-02T15:04:05.000Z07:00 ")
	}
	_, file, line, _ := runtime.Caller(2)
	s := specs[p.level]
	_, _ = fmt.Fprintf(p.w, "%s%s %s %s\n", locColor(ts), s.color(s.tag), text,
		locColor(fmt.Sprintf("%s:%d", file, line)))
}

func (p printer) levelPrinter() LevelPrinter {
	return LevelPrinter{
		Ln: func(a ...any) {
			if p.enabled() {
				p.emit(strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
			}
		},
		F: func(format string, a ...any) {
			if p.enabled() {
				p.emit(fmt.Sprintf(format, a...))
			}
		},
		S: func(a ...any) {
			if p.enabled() {
				p.emit(spew.Sdump(a...))
			}
		},
		C: func(closure func() string) {
			if p.enabled() {
				p.emit(closure())
			}
		},
		Chk: func(e error) bool {
			if e == nil {
				return false
			}
			if p.enabled() {
				p.emit(e.Error())
			}
			return true
		},
		Err: func(format string, a ...any) error {
			err := fmt.Errorf(format, a...)
			if p.enabled() {
				p.emit(err.Error())
			}
			return err
		},
	}
}

// New creates the printers of every level writing to w.
func New(w io.Writer) (l *Log, c *Check, e *Errorf) {
	at := func(level int32) LevelPrinter { return printer{level, w}.levelPrinter() }
	l = &Log{F: at(Fatal), E: at(Error), W: at(Warn), I: at(Info), D: at(Debug), T: at(Trace)}
	c = &Check{F: l.F.Chk, E: l.E.Chk, W: l.W.Chk, I: l.I.Chk, D: l.D.Chk, T: l.T.Chk}
	e = &Errorf{F: l.F.Err, E: l.E.Err, W: l.W.Err, I: l.I.Err, D: l.D.Err, T: l.T.Err}
	return
}
