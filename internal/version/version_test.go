package version

import "testing"

func TestFull(t *testing.T) {
	oldV, oldC := Version, Commit
	defer func() { Version, Commit = oldV, oldC }()

	Version, Commit = "v1.4.0", "abc1234"
	if got := Full(); got != "v1.4.0 (commit: abc1234)" {
		t.Errorf("Full: got %q", got)
	}
}

func TestCommitPopulated(t *testing.T) {
	if Commit == "" {
		t.Error("Commit should never be empty after init")
	}
}
