package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ogurasousui/basex-empresa/internal/platform/config"
)

func TestNew_JSONAtDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, config.LogConfig{Level: "debug", Format: "json"})
	log.Debug("step done", "operation", "insert_department")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if entry["operation"] != "insert_department" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNew_TextFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, config.LogConfig{Level: "warn", Format: "text"})
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %q", out)
	}
}
