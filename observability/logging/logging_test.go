package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Service: "nftstaked", Env: "test", Output: &buf})
	logger.Info("staked", MaskField("signature", "0xdead"), MaskField("caller", "nstk1abc"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "staked" || line["severity"] != "INFO" {
		t.Fatalf("unexpected envelope %v", line)
	}
	if line["service"] != "nftstaked" || line["env"] != "test" {
		t.Fatalf("missing service attrs %v", line)
	}
	if line["signature"] != RedactedValue {
		t.Fatalf("signature must be redacted, got %v", line["signature"])
	}
	if line["caller"] != "nstk1abc" {
		t.Fatalf("caller is allowlisted, got %v", line["caller"])
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp key missing")
	}
}

func TestNewMirrorsToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "node.log")
	logger := New(Options{Service: "nftstaked", File: path, Output: &buf})
	logger.Warn("rejected")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"message":"rejected"`) {
		t.Fatalf("file sink missing line: %s", raw)
	}
}

func TestRedactionAllowlistSorted(t *testing.T) {
	keys := RedactionAllowlist()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("allowlist not sorted: %v", keys)
		}
	}
}
