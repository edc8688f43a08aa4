package flitsim

import (
	"fmt"
	"testing"
)

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debugf(format string, v ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, v...))
}
func (l *recordingLogger) Debug(message string) { l.messages = append(l.messages, message) }
func (l *recordingLogger) Infof(format string, v ...any) {}
func (l *recordingLogger) Info(message string)  {}
func (l *recordingLogger) Warnf(format string, v ...any) {}
func (l *recordingLogger) Warn(message string)  {}

var _ Logger = &recordingLogger{}

func TestComponentDebugfGatedByDebugName(t *testing.T) {
	logger := &recordingLogger{}

	reg := NewRegistry([]string{"Root.Child"})
	reg.SetLogger(logger)

	kernel := NewKernel(NewClocks(1, 1, 1))
	root := NewComponent(kernel, reg, "Root", nil)
	child := NewComponent(kernel, reg, "Child", root)
	sibling := NewComponent(kernel, reg, "Sibling", root)

	if !child.Debug() {
		t.Fatal("expected Root.Child to match the configured debug name")
	}
	if sibling.Debug() {
		t.Fatal("expected Root.Sibling not to match any configured debug name")
	}

	child.Debugf("hello %d", 1)
	sibling.Debugf("should not appear")

	if len(logger.messages) != 1 {
		t.Fatalf("expected exactly 1 logged message, got %d: %v", len(logger.messages), logger.messages)
	}
	if logger.messages[0] != "Root.Child: hello 1" {
		t.Fatalf("unexpected message: %q", logger.messages[0])
	}

	reg.DebugCheck() // must not panic: the configured name was matched
}
