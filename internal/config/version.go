package config

// Build metadata injected at build time via ldflags.
//
// Build with:
//   go build -ldflags "-X 'github.com/driftwood/driftwood/internal/config.Version=1.0.0' \
//                      -X 'github.com/driftwood/driftwood/internal/config.Commit=abc1234'"
var (
	Version   = "0.1.0-dev"
	Commit    = ""
	BuildDate = ""
)
