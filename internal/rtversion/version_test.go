package rtversion

import "testing"

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	_ = GitCommit
	_ = BuildDate
}

func TestVersion_CanBeOverridden(t *testing.T) {
	origVersion, origGitCommit, origBuildDate := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = origVersion, origGitCommit, origBuildDate }()

	Version = "1.2.3"
	GitCommit = "abc123def456"
	BuildDate = "2024-01-15T10:30:00Z"

	if Version != "1.2.3" {
		t.Errorf("Version = %q, want %q", Version, "1.2.3")
	}
	if GitCommit != "abc123def456" {
		t.Errorf("GitCommit = %q, want %q", GitCommit, "abc123def456")
	}
	if BuildDate != "2024-01-15T10:30:00Z" {
		t.Errorf("BuildDate = %q, want %q", BuildDate, "2024-01-15T10:30:00Z")
	}
}

func TestGitCommitInfo(t *testing.T) {
	origCommit, origMessage := GitCommit, GitMessage
	defer func() { GitCommit, GitMessage = origCommit, origMessage }()

	GitCommit, GitMessage = "", ""
	if got := GitCommitInfo(); got != "" {
		t.Errorf("GitCommitInfo() = %q, want empty", got)
	}

	GitCommit, GitMessage = "abc123", ""
	if got := GitCommitInfo(); got != "abc123" {
		t.Errorf("GitCommitInfo() = %q, want %q", got, "abc123")
	}

	GitCommit, GitMessage = "abc123", "fix thunk leak"
	if got, want := GitCommitInfo(), "abc123 fix thunk leak"; got != want {
		t.Errorf("GitCommitInfo() = %q, want %q", got, want)
	}
}
