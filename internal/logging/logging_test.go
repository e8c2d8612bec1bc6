package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format Text, got %v", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.MaxSize <= 0 {
		t.Errorf("expected positive MaxSize, got %d", cfg.MaxSize)
	}
	if cfg.MaxAge <= 0 {
		t.Errorf("expected positive MaxAge, got %d", cfg.MaxAge)
	}
	if cfg.MaxBackups <= 0 {
		t.Errorf("expected positive MaxBackups, got %d", cfg.MaxBackups)
	}
}

func TestLoggerNew(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "stderr"

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.Logger == nil {
		t.Error("logger.Logger is nil")
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"user_password", true},
		{"secret", true},
		{"api_key", true},
		{"apikey", true},
		{"token", true},
		{"auth_token", true},
		{"access_token", true},
		{"refresh_token", true},
		{"bearer", true},
		{"credential", true},
		{"private_key", true},
		{"session_id", true},
		{"cookie", true},
		{"username", false},
		{"email", false},
		{"name", false},
		{"id", false},
		{"timestamp", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			result := shouldRedact(test.key)
			if result != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, result, test.expected)
			}
		})
	}
}

func TestFileRotator(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	cfg := &Config{
		FilePath:   logPath,
		MaxSize:    1, // 1 MB
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   false, // Disable for faster tests
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	// Write some data
	testData := []byte("test log line\n")
	n, err := rotator.Write(testData)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(testData) {
		t.Errorf("expected to write %d bytes, wrote %d", len(testData), n)
	}

	// Verify file exists
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("log file was not created")
	}

	if err := rotator.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestRedactionInOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "redact.log")

	cfg := &Config{
		Level:      LevelInfo,
		Format:     FormatJSON,
		Output:     "file",
		FilePath:   logPath,
		MaxSize:    1,
		MaxAge:     1,
		MaxBackups: 1,
		Component:  "test",
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Info("corrector configured", "api_key", "super-secret-value", "endpoint", "https://example.com")
	logger.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}

	if strings.Contains(string(data), "super-secret-value") {
		t.Error("API key leaked into log output")
	}
	if !strings.Contains(string(data), "[REDACTED]") {
		t.Error("expected [REDACTED] marker in log output")
	}

	var entry map[string]interface{}
	line := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)[0]
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Errorf("log line is not valid JSON: %v", err)
	}
}

func readCrashReports(t *testing.T, dir string) []CrashReport {
	t.Helper()

	files, err := filepath.Glob(filepath.Join(dir, "crash-*.json"))
	if err != nil {
		t.Fatalf("glob crash dir: %v", err)
	}

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read crash report: %v", err)
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("unmarshal crash report: %v", err)
		}
		reports = append(reports, report)
	}
	return reports
}

func TestCrashHandlerWritesDump(t *testing.T) {
	tmpDir := t.TempDir()

	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  tmpDir,
		Version:   "1.0.0",
		Component: "test",
	})

	handler.HandlePanic("test panic value", map[string]interface{}{
		"test_key": "test_value",
	})

	reports := readCrashReports(t, tmpDir)
	if len(reports) == 0 {
		t.Fatal("no crash report was created")
	}

	report := reports[0]
	if report.PanicValue != "test panic value" {
		t.Errorf("expected panic value 'test panic value', got %q", report.PanicValue)
	}
	if report.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", report.Version)
	}
	if report.Component != "test" {
		t.Errorf("expected component 'test', got %q", report.Component)
	}
}

func TestCrashHandlerRecoverGoroutine(t *testing.T) {
	tmpDir := t.TempDir()

	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  tmpDir,
		Version:   "1.0.0",
		Component: "test",
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer handler.RecoverGoroutine()
		panic("intentional test panic")
	}()
	<-done

	if len(readCrashReports(t, tmpDir)) == 0 {
		t.Error("crash report was not created for recovered panic")
	}
}

func TestCrashHandlerCleanupOldReports(t *testing.T) {
	tmpDir := t.TempDir()

	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  tmpDir,
		Component: "test",
	})

	old := filepath.Join(tmpDir, "crash-test-20200101-000000.json")
	if err := os.WriteFile(old, []byte("{}"), 0640); err != nil {
		t.Fatalf("write old report: %v", err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("age old report: %v", err)
	}

	handler.HandlePanic("fresh", nil)

	if err := handler.CleanupOldCrashReports(24 * time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale report should have been removed")
	}
	if len(readCrashReports(t, tmpDir)) != 1 {
		t.Error("fresh report should have survived cleanup")
	}
}
