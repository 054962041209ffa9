// Package notify renders user-facing notices and navigation for terminal
// consumers of the identity manager.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/aussiebroadwan/askbar/pkg/slogx"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelLoading Level = "loading"
)

var prefixes = map[Level]string{
	LevelSuccess: "✓",
	LevelInfo:    "i",
	LevelWarning: "!",
	LevelError:   "✗",
	LevelLoading: "…",
}

// Writer prints one line per notice to W and mirrors each notice to Logger
// at debug level. It is safe for concurrent use.
type Writer struct {
	w      io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int
	pending map[string]string
}

// NewWriter returns a Writer. A nil logger disables the mirror.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slogx.Discard()
	}
	return &Writer{w: w, logger: logger, pending: make(map[string]string)}
}

func (n *Writer) Success(msg string) { n.emit(LevelSuccess, msg) }
func (n *Writer) Info(msg string)    { n.emit(LevelInfo, msg) }
func (n *Writer) Warning(msg string) { n.emit(LevelWarning, msg) }
func (n *Writer) Error(msg string)   { n.emit(LevelError, msg) }

// Loading prints msg and returns the id Dismiss needs.
func (n *Writer) Loading(msg string) string {
	n.mu.Lock()
	n.nextID++
	id := "loading-" + strconv.Itoa(n.nextID)
	n.pending[id] = msg
	n.mu.Unlock()

	n.emit(LevelLoading, msg)
	return id
}

// Dismiss forgets a loading notice. Unknown ids are ignored.
func (n *Writer) Dismiss(id string) {
	n.mu.Lock()
	msg, ok := n.pending[id]
	delete(n.pending, id)
	n.mu.Unlock()

	if ok {
		n.logger.Debug("notice dismissed", "id", id, "msg", msg)
	}
}

// Pending reports how many loading notices are still shown.
func (n *Writer) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Writer) emit(level Level, msg string) {
	n.mu.Lock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", prefixes[level], msg)
	n.mu.Unlock()

	n.logger.Debug("notice", "level", string(level), "msg", msg)
}

// Navigator records the last target and prints external URLs so the user
// can open them.
type Navigator struct {
	w io.Writer

	mu   sync.Mutex
	last string
}

func NewNavigator(w io.Writer) *Navigator {
	return &Navigator{w: w}
}

func (n *Navigator) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = target
	_, _ = fmt.Fprintf(n.w, "→ %s\n", target)
}

// Last returns the most recent target, or "" before any navigation.
func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
