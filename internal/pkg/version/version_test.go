package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfo_String(t *testing.T) {
	testCases := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"仅版本号", BuildInfo{Version: "v1.0.0", Commit: "unknown", Date: "unknown"}, "v1.0.0"},
		{"完整信息", BuildInfo{Version: "v1.0.0", Commit: "abc1234", Date: "2025-11-01 10:00:00"}, "v1.0.0, commit abc1234, built at 2025-11-01 10:00:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.info.String())
		})
	}
}

func TestGetBuildInfo_KeepsInjectedValues(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v2.1.0", "deadbee"
	info := GetBuildInfo()
	assert.Equal(t, "v2.1.0", info.Version)
	assert.Equal(t, "deadbee", info.Commit)
	assert.Equal(t, GoVersion, info.GoVersion)
}
