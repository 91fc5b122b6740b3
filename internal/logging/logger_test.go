package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelInfo, Output: &buf})

	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Errorf("loud %d", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line leaked through the info level")
	}
	if !strings.Contains(out, "[INFO] shown 2") {
		t.Errorf("info line missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR] loud 3") {
		t.Errorf("error line missing: %q", out)
	}
}

func TestWithTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	w := l.WithTag("worker 3")

	w.Debugf("pinned")
	l.Infof("untouched")

	out := buf.String()
	if !strings.Contains(out, "[DEBUG] worker 3: pinned") {
		t.Errorf("tagged line missing: %q", out)
	}
	if strings.Contains(out, "worker 3: untouched") {
		t.Error("tag bled into the parent logger")
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	Infof("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("default logger output missing: %q", buf.String())
	}
}

func TestNilConfigDefaults(t *testing.T) {
	l := NewLogger(nil)
	if l.level != LevelInfo {
		t.Errorf("default level = %d, want info", l.level)
	}
}
