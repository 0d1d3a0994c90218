package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{"info", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"WARN", logrus.WarnLevel, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(Options{Level: tt.level, Output: &bytes.Buffer{}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if err == nil && l.GetLevel() != tt.want {
				t.Errorf("level: got %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Debug("hidden detail")
	l.Info("frame processed")

	out := buf.String()
	if strings.Contains(out, "hidden detail") {
		t.Error("debug entry should be filtered at info level")
	}
	if !strings.Contains(out, "frame processed") {
		t.Errorf("info entry missing from output: %q", out)
	}
}

func TestLogger_Run(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	entry := l.Run()
	id, ok := entry.Data[RunIDKey].(string)
	if !ok {
		t.Fatalf("run id missing: %v", entry.Data)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a uuid: %v", id, err)
	}
	if other := l.Run().Data[RunIDKey]; other == id {
		t.Error("each run should get its own id")
	}

	entry.Info("counting coins")
	if !strings.Contains(buf.String(), id) {
		t.Errorf("output should carry the run id: %q", buf.String())
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "coin-counter.log")
	l, err := New(Options{Level: "info", File: path, Output: &bytes.Buffer{}, NoColors: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	l.Info("written to file")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content: %q", data)
	}
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	l, err := New(Options{Level: "info", Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: got %v, want nil", err)
	}
}
