package version

import (
	"fmt"
	"runtime"
)

var (
	// Version はビルド時に -ldflags で設定される
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info はバージョン情報
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	Platform  string
}

// Get は現在のバージョン情報を返す
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String は `kobito version` の表示形式
func (i Info) String() string {
	return fmt.Sprintf("kobito %s (commit: %s, built: %s, %s %s)",
		i.Version, i.Commit, i.Date, i.GoVersion, i.Platform)
}
