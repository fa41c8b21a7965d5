package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindConfig:   "CONFIGURATION",
		KindNetwork:  "NETWORK",
		KindAuth:     "AUTHENTICATION",
		KindMismatch: "MISMATCH",
		KindNotFound: "NOT_FOUND",
		KindInternal: "INTERNAL",
		Kind(99):     "INTERNAL",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("kind %d: expected %q, got %q", int(k), want, got)
		}
	}
}

func TestFatalKinds(t *testing.T) {
	for _, k := range []Kind{KindConfig, KindNetwork, KindAuth} {
		if !k.Fatal() {
			t.Fatalf("expected %s to be fatal", k)
		}
	}
	for _, k := range []Kind{KindMismatch, KindNotFound, KindInternal} {
		if k.Fatal() {
			t.Fatalf("did not expect %s to be fatal", k)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	root := errors.New("dial tcp: connection refused")
	err := Wrap(KindNetwork, root, "download dataset")

	if !errors.Is(err, root) {
		t.Fatalf("expected wrapped cause")
	}
	if !errors.Is(err, Network) {
		t.Fatalf("expected errors.Is to match Network sentinel")
	}
	if errors.Is(err, NotFound) {
		t.Fatalf("did not expect NotFound to match")
	}
	if got := err.Error(); got != "download dataset: dial tcp: connection refused" {
		t.Fatalf("unexpected message: %q", got)
	}
	if Wrap(KindNetwork, nil, "x") != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("validate orders: %w", Newf(KindNotFound, "table %s not found", "orders"))
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("expected INTERNAL for plain error, got %s", got)
	}
}

func TestExitCode(t *testing.T) {
	if KindConfig.ExitCode() != 2 || KindAuth.ExitCode() != 3 || KindMismatch.ExitCode() != 1 {
		t.Fatalf("unexpected exit code mapping")
	}
}
