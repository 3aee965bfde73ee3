package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerWritesToFileAndStderrAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, &debug)

	log := slog.New(h)
	log.Info("engine started", "workers", 4)

	out := buf.String()
	if !strings.Contains(out, "engine started") {
		t.Errorf("log output %q does not contain the message", out)
	}
	if !strings.Contains(out, "INFO:") {
		t.Errorf("log output %q does not contain the level", out)
	}
}

func TestSetDebugTogglesStderrMirroring(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, nil, &debug)
	if h.debug {
		t.Error("debug should start false")
	}
	debug = true
	h.SetDebug(&debug)
	if !h.debug {
		t.Error("SetDebug(true) did not take effect")
	}
}

func TestWithAttrsPreservesMutex(t *testing.T) {
	var buf bytes.Buffer
	debug := false
	h := NewHandler(&buf, nil, &debug)
	child := h.WithAttrs([]slog.Attr{slog.String("component", "engine")})

	log := slog.New(child)
	log.Info("pass complete")

	if !strings.Contains(buf.String(), "pass complete") {
		t.Errorf("child handler did not write through to the shared writer: %q", buf.String())
	}
}
