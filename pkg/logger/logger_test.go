package logger

import "testing"

func TestNewLogger(t *testing.T) {
	for _, env := range []string{EnvironmentProduction, "prod", EnvironmentTest, EnvironmentDevelopment, ""} {
		l, err := NewLogger(env)
		if err != nil {
			t.Errorf("NewLogger(%q): %v", env, err)
			continue
		}
		if l == nil {
			t.Errorf("NewLogger(%q) returned nil logger", env)
		}
	}
}

func TestGetLoggerBeforeInit(t *testing.T) {
	logger = nil
	if GetLogger() == nil {
		t.Fatal("expected no-op logger before InitLogger")
	}
}

func TestInitLogger(t *testing.T) {
	l, err := InitLogger(EnvironmentTest)
	if err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	if GetLogger() != l {
		t.Error("GetLogger should return the initialized logger")
	}
}
