package semerr

import (
	"errors"
	"testing"
)

func TestCodedErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindCacheCorrupt, "loading layer file", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := New(KindFileNotFound, "missing file")
	withDetails := base.WithDetails(map[string]interface{}{"path": "a.go"})
	if base.Details != nil {
		t.Error("WithDetails must not mutate the receiver")
	}
	if withDetails.Details["path"] != "a.go" {
		t.Error("expected the new error to carry the details")
	}
}

func TestPropagationPolicy(t *testing.T) {
	cases := []struct {
		kind             Kind
		recoveredLocally bool
		reportedToClient bool
	}{
		{KindParseFailure, true, false},
		{KindExtractionFailure, true, false},
		{KindWatcherFailure, true, false},
		{KindFileNotFound, false, true},
		{KindUnsupportedLanguage, false, true},
		{KindInvalidRequest, false, true},
		{KindTimeout, false, true},
		{KindProtocolError, false, true},
		{KindIndexStale, false, true},
		{KindCacheCorrupt, false, false},
		{KindGitFailure, false, false},
		{KindInternal, false, false},
	}
	for _, tc := range cases {
		if got := RecoveredLocally(tc.kind); got != tc.recoveredLocally {
			t.Errorf("RecoveredLocally(%s) = %v, want %v", tc.kind, got, tc.recoveredLocally)
		}
		if got := ReportedToClient(tc.kind); got != tc.reportedToClient {
			t.Errorf("ReportedToClient(%s) = %v, want %v", tc.kind, got, tc.reportedToClient)
		}
	}
}

func TestExitCode(t *testing.T) {
	cases := map[Kind]int{
		KindFileNotFound:   2,
		KindInvalidRequest: 2,
		KindCacheCorrupt:   3,
		KindInternal:       1,
		KindGitFailure:     1,
	}
	for kind, want := range cases {
		if got := ExitCode(kind); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestClientCode(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidRequest:      "invalid_params",
		KindTimeout:             "timeout",
		KindProtocolError:       "unknown_method",
		KindFileNotFound:        "invalid_repo",
		KindUnsupportedLanguage: "invalid_repo",
		KindIndexStale:          "invalid_repo",
		KindInternal:            "internal_error",
	}
	for kind, want := range cases {
		if got := ClientCode(kind); got != want {
			t.Errorf("ClientCode(%s) = %q, want %q", kind, got, want)
		}
	}
}

func TestFatalToConnection(t *testing.T) {
	if !FatalToConnection(KindCacheCorrupt) {
		t.Error("expected CacheCorrupt to be fatal to the connection")
	}
	if FatalToConnection(KindTimeout) {
		t.Error("expected Timeout to not be fatal to the connection")
	}
}
