package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, b string) { Version, GitCommit, BuildTime = v, c, b }(Version, GitCommit, BuildTime)

	if got := String(); got != Version {
		t.Fatalf("String() = %q, want %q", got, Version)
	}
	Version, GitCommit, BuildTime = "v1.2.0", "abc123", "2026-01-02"
	if got, want := String(), "v1.2.0 (abc123, built 2026-01-02)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
