package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLogWritesJSONLineToFile(t *testing.T) {
	l := &Logger{enabled: true}
	path := filepath.Join(t.TempDir(), "calls.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&CallLog{RequestID: "r1", Tag: "invoke", DurationMs: 12, Success: true})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one logged line")
	}
	var entry CallLog
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.RequestID != "r1" || entry.Tag != "invoke" || !entry.Success {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestLogDisabledLoggerWritesNothing(t *testing.T) {
	l := &Logger{enabled: false}
	path := filepath.Join(t.TempDir(), "calls.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&CallLog{RequestID: "r1", Tag: "invoke"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output from a disabled logger, got %q", data)
	}
}
