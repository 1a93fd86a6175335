// Package version holds build information injected via ldflags.
package version

// Build information (injected via ldflags - must NOT have default values).
var (
	Version string
	GitSHA   string
	Date     string
)

// String returns a one-line "vX.Y.Z (abcdef1, 2026-07-30)" style summary,
// falling back to "(devel)" for unlinked builds (go run, go test).
func String() string {
	v := Version
	if v == "" {
		v = "(devel)"
	}
	sha := GitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	if sha == "" && Date == "" {
		return v
	}
	return v + " (" + sha + ", " + Date + ")"
}
