package capabilities

import (
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// Capability names
const (
	CapabilityGit       = "git"
	CapabilityNpm       = "npm"
	CapabilitySystemctl = "systemctl"
	CapabilityDocker    = "docker"
)

// Capability represents a host tool that can be detected
type Capability interface {
	// Name returns the name of the capability
	Name() string
	// Version returns the detected version, empty when unavailable
	Version() string
	// IsAvailable returns whether the capability is available
	IsAvailable() bool
}

var versionPattern = regexp.MustCompile(`\d+(\.\d+)*`)

// ToolCapability detects a binary on PATH by running it with a version flag.
type ToolCapability struct {
	name    string
	binary  string
	args    []string
	version string
	checked bool
	ok      bool
}

// NewToolCapability creates a capability for binary, checked by running it with args.
func NewToolCapability(name, binary string, args ...string) *ToolCapability {
	return &ToolCapability{name: name, binary: binary, args: args}
}

// NewGitCapability creates a new Git capability
func NewGitCapability() *ToolCapability {
	return NewToolCapability(CapabilityGit, "git", "--version")
}

// NewNpmCapability creates a new npm capability
func NewNpmCapability() *ToolCapability {
	return NewToolCapability(CapabilityNpm, "npm", "--version")
}

// NewSystemctlCapability creates a new systemctl capability
func NewSystemctlCapability() *ToolCapability {
	return NewToolCapability(CapabilitySystemctl, "systemctl", "--version")
}

// NewDockerCapability creates a new Docker capability
func NewDockerCapability() *ToolCapability {
	return NewToolCapability(CapabilityDocker, "docker", "--version")
}

// Name returns the name of the capability
func (c *ToolCapability) Name() string {
	return c.name
}

// Version returns the version of the capability
func (c *ToolCapability) Version() string {
	c.detect()
	return c.version
}

// IsAvailable checks if the tool is available on the system
func (c *ToolCapability) IsAvailable() bool {
	c.detect()
	return c.ok
}

func (c *ToolCapability) detect() {
	if c.checked {
		return
	}
	c.checked = true
	output, err := exec.Command(c.binary, c.args...).Output()
	if err != nil {
		return
	}
	c.ok = true
	c.version = ParseVersion(string(output))
}

// ParseVersion extracts the first dotted version number from tool output,
// e.g. "git version 2.39.2" -> "2.39.2", "systemd 252 (252.22-1)" -> "252".
func ParseVersion(output string) string {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	return versionPattern.FindString(firstLine)
}

// CapabilityFactory creates and returns all known capabilities
type CapabilityFactory struct {
	capabilities []Capability
}

// NewCapabilityFactory creates a new capability factory
func NewCapabilityFactory(capabilities ...Capability) *CapabilityFactory {
	if len(capabilities) == 0 {
		capabilities = []Capability{
			NewGitCapability(),
			NewNpmCapability(),
			NewSystemctlCapability(),
			NewDockerCapability(),
		}
	}
	return &CapabilityFactory{capabilities: capabilities}
}

// GetAllCapabilities returns all capabilities
func (f *CapabilityFactory) GetAllCapabilities() []Capability {
	return f.capabilities
}

// GetCapabilityByName returns a capability by its name
func (f *CapabilityFactory) GetCapabilityByName(name string) Capability {
	for _, c := range f.capabilities {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ToMap returns name -> version, or "unavailable" for missing tools.
func (f *CapabilityFactory) ToMap() map[string]string {
	out := make(map[string]string, len(f.capabilities))
	for _, c := range f.capabilities {
		if c.IsAvailable() {
			out[c.Name()] = c.Version()
		} else {
			out[c.Name()] = "unavailable"
		}
	}
	return out
}

// Require returns an error naming every listed capability that is unknown or unavailable.
func (f *CapabilityFactory) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		c := f.GetCapabilityByName(name)
		if c == nil || !c.IsAvailable() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("required tools not available: %s", strings.Join(missing, ", "))
	}
	return nil
}
