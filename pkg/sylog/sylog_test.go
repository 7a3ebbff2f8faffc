package sylog

import "testing"

func TestEnabled(t *testing.T) {
	prev := current
	defer func() { current = prev }()

	current = InfoLevel
	if !enabled(ErrorLevel) {
		t.Error("ErrorLevel should be enabled at InfoLevel")
	}
	if enabled(DebugLevel) {
		t.Error("DebugLevel should not be enabled at InfoLevel")
	}

	current = DebugLevel
	if !enabled(DebugLevel) {
		t.Error("DebugLevel should be enabled at DebugLevel")
	}
}

func TestSetLevel(t *testing.T) {
	prev := current
	defer func() { current = prev }()

	SetLevel(int(VerboseLevel))
	if !enabled(VerboseLevel) {
		t.Error("VerboseLevel should be enabled after SetLevel(VerboseLevel)")
	}
	if enabled(DebugLevel) {
		t.Error("DebugLevel should not be enabled after SetLevel(VerboseLevel)")
	}
}
