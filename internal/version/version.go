// Package version holds build metadata set at link time, e.g.
//
//	go build -ldflags "-X github.com/information-sharing-networks/wiki-harness/internal/version.version=v1.2.0"
package version

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

type Info struct {
	Version   string
	BuildDate string
	GitCommit string
}

func Get() Info {
	return Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}
}
