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
				Phase:    PhaseMarshal,
				Kind:     KindOverflow,
				Resource: "region[65530:65546]",
				Detail:   "region exceeds linear memory",
			},
			contains: []string{"[marshal]", "overflow", "region[65530:65546]", "exceeds"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRuntime,
				Kind:  KindNotReady,
			},
			contains: []string{"[runtime]", "not_ready"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseSource,
				Kind:   KindNetwork,
				Detail: "module image unavailable",
				Cause:  errors.New("connection refused"),
			},
			contains: []string{"[source]", "network", "caused by", "connection refused"},
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
	err := Instantiation("caesar.wasm", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := NotReady("caesarEncrypt")

	if !errors.Is(err, ErrNotReady) {
		t.Error("NotReady should match ErrNotReady")
	}
	if errors.Is(err, ErrMalformedText) {
		t.Error("NotReady should not match ErrMalformedText")
	}
	if !Is(MalformedText(0, 256), ErrMalformedText) {
		t.Error("MalformedText should match ErrMalformedText")
	}
	if !Is(MarshalOverflow(65530, 16, 65536), ErrMarshalOverflow) {
		t.Error("MarshalOverflow should match ErrMarshalOverflow")
	}
	if !Is(Source(KindNotFound, "x.wasm", nil), ErrSourceNotFound) {
		t.Error("Source(NotFound) should match ErrSourceNotFound")
	}
	if Is(Source(KindNetwork, "x.wasm", nil), ErrSourceNotFound) {
		t.Error("Source(Network) should not match ErrSourceNotFound")
	}

	// wrapped in fmt errors
	wrapped := errors.Join(errors.New("outer"), Source(KindNetwork, "http://x/a.wasm", nil))
	if !Is(wrapped, ErrSourceNetwork) {
		t.Error("joined error should match ErrSourceNetwork")
	}
}

func TestAs(t *testing.T) {
	var target *Error
	err := error(MarshalOverflow(10, 20, 16))
	if !As(err, &target) {
		t.Fatal("As should extract *Error")
	}
	if target.Value != uint64(10) {
		t.Errorf("Value = %v, want 10", target.Value)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseHost, KindTypeMismatch).
		Resource("env#time").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "(i32) -> i32", "() -> i32").
		Build()

	if err.Phase != PhaseHost {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseHost)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if err.Resource != "env#time" {
		t.Errorf("Resource = %q, want env#time", err.Resource)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected (i32) -> i32, got () -> i32" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("MalformedText", func(t *testing.T) {
		err := MalformedText(128, 256)
		if err.Kind != KindMalformedText {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMalformedText)
		}
		if !strings.Contains(err.Detail, "256") {
			t.Errorf("Detail = %v, should contain limit", err.Detail)
		}
	})

	t.Run("MarshalOverflow", func(t *testing.T) {
		err := MarshalOverflow(65530, 16, 65536)
		if err.Resource != "region[65530:65546]" {
			t.Errorf("Resource = %q", err.Resource)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseMarshal, 4, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
		if !strings.Contains(err.Detail, "fffe") {
			t.Errorf("Detail = %v, should contain preview", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseMarshal, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("Unbalanced", func(t *testing.T) {
		err := Unbalanced("wasm-instantiate", "removed without add")
		if err.Phase != PhaseReadiness || err.Kind != KindUnbalanced {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("Registration", func(t *testing.T) {
		err := Registration(PhaseHost, "env", "time", errors.New("dup"))
		if err.Resource != "env#time" {
			t.Errorf("Resource = %q, want env#time", err.Resource)
		}
	})
}

func TestParseFailed(t *testing.T) {
	cause := errors.New("unknown type")
	err := ParseFailed("type widget", cause)
	if err.Phase != PhaseParse || err.Kind != KindInvalidData {
		t.Errorf("got %s/%s, want parse/invalid data", err.Phase, err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}
	if !strings.Contains(err.Error(), "parse type widget") {
		t.Errorf("error %q should name what failed", err.Error())
	}
}

func TestMissingImportsError(t *testing.T) {
	t.Run("single import", func(t *testing.T) {
		err := &MissingImportsError{}
		err.Add("env", "time", "")
		if len(err.Imports) != 1 {
			t.Fatalf("expected 1 import, got %d", len(err.Imports))
		}
		if err.Imports[0].Namespace != "env" {
			t.Errorf("namespace = %q, want env", err.Imports[0].Namespace)
		}
		if err.Imports[0].Function != "time" {
			t.Errorf("function = %q, want time", err.Imports[0].Function)
		}
	})

	t.Run("grouped with reasons", func(t *testing.T) {
		err := &MissingImportsError{}
		err.Add("env", "time", "")
		err.Add("a", "a", "")
		err.Add("env", "get", "want () -> (), got (i32) -> ()")
		msg := err.Error()
		for _, s := range []string{"3", "env:", "a:", "time", "get (want () -> (), got (i32) -> ())"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error %q should contain %q", msg, s)
			}
		}
	})

	t.Run("empty imports", func(t *testing.T) {
		err := &MissingImportsError{}
		if !strings.Contains(err.Error(), "no imports specified") {
			t.Errorf("empty error should have specific message, got: %s", err.Error())
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		missing := &MissingImportsError{}
		missing.Add("ns", "fn", "")
		err := Instantiation("m.wasm", missing)
		if !errors.Is(err, &MissingImportsError{}) {
			t.Error("errors.Is should reach MissingImportsError")
		}
	})
}
