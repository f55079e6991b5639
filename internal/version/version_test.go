package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	original := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
	t.Cleanup(func() { readBuildInfo = original })
}

func stubMetadata(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
}

func TestStringIncludesBuildMetadata(t *testing.T) {
	stubMetadata(t, "1.2.3", "abc123", "2026-02-18")

	got := String()
	require.Contains(t, got, "lecturenote 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "date=2026-02-18")
	require.Contains(t, got, "go=")
}

func TestResolvedFallsBackToModuleVersion(t *testing.T) {
	stubMetadata(t, "dev", "none", "unknown")

	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}}, true)
	require.Equal(t, "v0.4.0", Resolved())

	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true)
	require.Equal(t, "dev", Resolved())

	stubBuildInfo(t, nil, false)
	require.Equal(t, "dev", Resolved())
}
