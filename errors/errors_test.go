package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseConfig,
				Kind:   KindInvalidInput,
				Path:   []string{"files", "2", "compression"},
				Export: "_start",
				Detail: "unknown compression",
			},
			contains: []string{"[config]", "invalid_input", "files.2.compression", "export _start", "unknown compression"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseBridge,
				Kind:   KindIllegalState,
				Detail: "await failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[bridge]", "illegal_state", "await failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseStart,
		Kind:   KindMissingExport,
		Export: "_start",
	}

	if !err.Is(&Error{Phase: PhaseStart, Kind: KindMissingExport}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseBridge, Kind: KindMissingExport}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseStart, Kind: KindWrongType}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseStart, Kind: KindMissingExport}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseBridge, KindIllegalState).
		Path("bridge").
		Export("run").
		Value(2).
		Cause(cause).
		Detail("expected %s, got %s", "idle", "rewinding").
		Build()

	if err.Phase != PhaseBridge {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBridge)
	}
	if err.Kind != KindIllegalState {
		t.Errorf("Kind = %v, want %v", err.Kind, KindIllegalState)
	}
	if len(err.Path) != 1 || err.Path[0] != "bridge" {
		t.Errorf("Path = %v, want [bridge]", err.Path)
	}
	if err.Export != "run" {
		t.Errorf("Export = %v, want 'run'", err.Export)
	}
	if err.Value != 2 {
		t.Errorf("Value = %v, want 2", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected idle, got rewinding" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(70000, 8)
		if err.Kind != KindOutOfBounds || err.Phase != PhaseMemory {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Value != uint32(70000) {
			t.Errorf("Value = %v, want 70000", err.Value)
		}
	})

	t.Run("MissingExport", func(t *testing.T) {
		err := MissingExport(PhaseStart, "_initialize")
		if err.Kind != KindMissingExport || err.Export != "_initialize" {
			t.Errorf("got %v %q", err.Kind, err.Export)
		}
	})

	t.Run("WrongType", func(t *testing.T) {
		err := WrongType(PhaseStart, "_start", "takes 1 params")
		if err.Kind != KindWrongType {
			t.Errorf("Kind = %v, want %v", err.Kind, KindWrongType)
		}
	})

	t.Run("AlreadyStarted", func(t *testing.T) {
		err := AlreadyStarted("_start")
		if err.Kind != KindAlreadyStarted || err.Phase != PhaseStart {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("IllegalState", func(t *testing.T) {
		err := IllegalState("import", "idle", "unwinding")
		if !strings.Contains(err.Detail, "unwinding") {
			t.Errorf("Detail = %v, should contain actual state", err.Detail)
		}
	})

	t.Run("Config", func(t *testing.T) {
		err := Config([]string{"files", "0"}, "path %q is not absolute", "a.txt")
		if err.Phase != PhaseConfig || !strings.Contains(err.Error(), "files.0") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Registration", func(t *testing.T) {
		err := Registration("wasi_snapshot_preview1", "fd_read", errors.New("dup"))
		if err.Phase != PhaseHost || !strings.Contains(err.Error(), "fd_read") {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestMissingExportsError(t *testing.T) {
	t.Run("lists exports", func(t *testing.T) {
		err := &MissingExportsError{
			Group:   "asyncify",
			Exports: []string{"asyncify_stop_rewind", "asyncify_get_state"},
		}
		msg := err.Error()
		for _, s := range []string{"missing 2 asyncify", "asyncify_stop_rewind", "asyncify_get_state"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error %q should contain %q", msg, s)
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		err := &MissingExportsError{}
		if !strings.Contains(err.Error(), "no exports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		var err error = &MissingExportsError{Exports: []string{"x"}}
		if !errors.Is(err, &MissingExportsError{}) {
			t.Error("errors.Is should match MissingExportsError")
		}
	})
}
