package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// 这些变量将在构建时通过 ldflags 注入
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo 包含构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// GetBuildInfo 返回构建信息，ldflags 未注入的字段从 vcs 信息中补齐
func GetBuildInfo() BuildInfo {
	info := BuildInfo{Version: Version, Commit: Commit, Date: Date, GoVersion: GoVersion}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		info.Version = buildInfo.Main.Version
	}
	for _, setting := range buildInfo.Settings {
		switch {
		case setting.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = setting.Value
			if len(info.Commit) > 7 {
				info.Commit = info.Commit[:7]
			}
		case setting.Key == "vcs.time" && info.Date == "unknown":
			info.Date = setting.Value
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.Date = t.Format("2006-01-02 15:04:05")
			}
		}
	}
	return info
}

// String 返回完整的版本字符串
func (b BuildInfo) String() string {
	parts := []string{b.Version}
	if b.Commit != "unknown" {
		parts = append(parts, fmt.Sprintf("commit %s", b.Commit))
	}
	if b.Date != "unknown" {
		parts = append(parts, fmt.Sprintf("built at %s", b.Date))
	}
	return strings.Join(parts, ", ")
}
