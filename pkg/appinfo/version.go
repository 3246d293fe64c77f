// Package appinfo holds the build information stamped into the binary.
package appinfo

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set at build time with LDFLAGS like below:
//
//	go build -ldflags '-X github.com/wuxler/filecache/pkg/appinfo.version=v1.0.0'
var (
	version      = "dev"
	buildDate    = "1970-01-01T00:00:00Z"
	gitCommit    = ""
	gitTreeState = ""
)

// Version records the application version together with the git and build
// environment it was produced from.
type Version struct {
	Version string    `json:"version" yaml:"version"`
	Git     GitInfo   `json:"git" yaml:"git"`
	Build   BuildInfo `json:"build" yaml:"build"`
}

// GitInfo records the git state at build time.
type GitInfo struct {
	Commit    string `json:"commit" yaml:"commit"`
	TreeState string `json:"tree_state" yaml:"tree_state"`
}

// BuildInfo records the toolchain and platform of the build.
type BuildInfo struct {
	BuildDate string `json:"build_date,omitempty" yaml:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty" yaml:"go_version,omitempty"`
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// GetVersion returns the Version of the application.
func GetVersion() Version {
	return Version{
		Version: version,
		Git: GitInfo{
			Commit:    gitCommit,
			TreeState: gitTreeState,
		},
		Build: BuildInfo{
			BuildDate: buildDate,
			GoVersion: runtime.Version(),
			Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		},
	}
}

// NewVersionWriter returns a *VersionWriter wrapping v.
func NewVersionWriter(v Version) *VersionWriter {
	return &VersionWriter{version: v}
}

// VersionWriter renders a Version in several formats.
type VersionWriter struct {
	version Version

	short   bool
	format  string
	appName string
}

// SetShort is a chain method to set the short option.
func (vw *VersionWriter) SetShort(short bool) *VersionWriter {
	vw.short = short
	return vw
}

// SetFormat is a chain method to set the output format.
func (vw *VersionWriter) SetFormat(format string) *VersionWriter {
	vw.format = format
	return vw
}

// SetAppName is a chain method to set the application name.
func (vw *VersionWriter) SetAppName(name string) *VersionWriter {
	vw.appName = name
	return vw
}

// Write renders the version information into w.
func (vw VersionWriter) Write(w io.Writer) error {
	switch strings.ToLower(vw.format) {
	case "yaml", "yml":
		return yaml.NewEncoder(w).Encode(vw.version)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(vw.version)
	}
	if vw.short {
		_, err := fmt.Fprintln(w, vw.ShortLine())
		return err
	}
	_, err := fmt.Fprint(w, vw.Extended())
	return err
}

// ShortLine returns a one-line version string.
func (vw VersionWriter) ShortLine() string {
	v := vw.version
	s := v.Version
	if v.Git.Commit != "" {
		s += " (" + v.Git.Commit + ")"
	}
	return s
}

// Extended returns a multi-line version string.
func (vw VersionWriter) Extended() string {
	v := vw.version
	var s string
	if vw.appName != "" {
		s += fmt.Sprintf("Application : %s\n", vw.appName)
	}
	s += fmt.Sprintf(`Version     : %s
Commit      : %s
TreeState   : %s
BuildDate   : %s
GoVersion   : %s
Platform    : %s
`,
		v.Version, v.Git.Commit, v.Git.TreeState,
		v.Build.BuildDate, v.Build.GoVersion, v.Build.Platform)
	return s
}
