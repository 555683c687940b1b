package version

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Set with -ldflags "-X ops-agent/internal/application/version.version=...".
var (
	version = "0.0.0"
	commit  = ""
	// Regular expression to match version pattern like "1.2.3" in "1.2.3-beta"
	versionRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
)

func GetVersion() string {
	return version
}

func GetNumericVersion() int {
	return ParseNumericVersion(version)
}

// String is the one-line form printed by the version command.
func String() string {
	s := fmt.Sprintf("ops-agent %s (#%d)", version, GetNumericVersion())
	if commit != "" {
		s += " commit " + commit
	}
	return s + " " + runtime.Version()
}

// ParseNumericVersion packs major.minor.patch into one comparable int.
func ParseNumericVersion(semVer string) int {
	matches := versionRegex.FindStringSubmatch(semVer)
	if len(matches) > 1 {
		semVer = matches[1]
	}

	parts := strings.Split(semVer, ".")
	result := 0
	for _, part := range parts {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}
