package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(CodeTaskNotFound, "task %d not found", 7)
	wrapped := fmt.Errorf("complete: %w", err)

	if !errors.Is(wrapped, &Error{Code: CodeTaskNotFound}) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, &Error{Code: CodeBossNotFound}) {
		t.Fatal("did not expect match for a different code")
	}
	if !HasCode(wrapped, CodeTaskNotFound) {
		t.Fatal("expected HasCode to find code through wrapping")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", New(CodeTaskQuotaExhausted, "quota"), KindValidation},
		{"not found", New(CodeMissionNotFound, "missing"), KindNotFound},
		{"precondition", New(CodeNotLoggedIn, "not logged in"), KindPrecondition},
		{"store", Wrap(CodeStoreFailure, "task get", errors.New("disk I/O error")), KindCollaborator},
		{"plain error", errors.New("boom"), KindCollaborator},
		{"unmapped code", New(Code("SOMETHING_NEW"), "x"), KindCollaborator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestStoreKeepsDomainErrors(t *testing.T) {
	domain := New(CodeTaskNotFound, "task 1 not found")
	if got := Store("complete", domain); got != domain {
		t.Fatalf("expected domain error to pass through, got %v", got)
	}

	cause := errors.New("database is locked")
	err := Store("task get", cause)
	if CodeOf(err) != CodeStoreFailure {
		t.Fatalf("code=%q, want %q", CodeOf(err), CodeStoreFailure)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected underlying cause to stay attached")
	}
	if err.Error() != "task get: database is locked" {
		t.Fatalf("message=%q", err.Error())
	}
	if Store("noop", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}
}
