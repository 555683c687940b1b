package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ops-agent/pkg/execx"
	"ops-agent/pkg/files"
	"ops-agent/pkg/yaml"
)

// Manifest is a project's declared build procedure.
type Manifest interface {
	// Kind names the manifest format.
	Kind() string
	// InstallCmd returns the dependency install step, or nil when the
	// project has nothing to install.
	InstallCmd() *execx.Cmd
	// BuildCmd returns the build action, or nil when none is declared.
	BuildCmd() *execx.Cmd
}

const (
	opsManifestPath = ".ops/build.yml"
	packageJSON     = "package.json"
)

var npmLockfiles = []string{"package-lock.json", "npm-shrinkwrap.json"}

// DetectManifest looks in dir for a build declaration. It returns nil, nil
// when the project declares nothing.
func DetectManifest(dir string) (Manifest, error) {
	if path := filepath.Join(dir, opsManifestPath); files.Exists(path) {
		return loadOpsManifest(path)
	}
	if path := filepath.Join(dir, packageJSON); files.Exists(path) {
		return loadNpmManifest(dir, path)
	}
	return nil, nil
}

// opsManifest is the explicit .ops/build.yml declaration.
type opsManifest struct {
	Install []string `yaml:"install"`
	Build   []string `yaml:"build"`
}

func loadOpsManifest(path string) (*opsManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m opsManifest
	if err := yaml.UnmarshalYAMLStrict(data, &m); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", opsManifestPath, err)
	}
	return &m, nil
}

func (m *opsManifest) Kind() string           { return "ops" }
func (m *opsManifest) InstallCmd() *execx.Cmd { return argvCmd(m.Install) }
func (m *opsManifest) BuildCmd() *execx.Cmd   { return argvCmd(m.Build) }

func argvCmd(argv []string) *execx.Cmd {
	if len(argv) == 0 {
		return nil
	}
	return &execx.Cmd{Name: argv[0], Args: argv[1:]}
}

// npmManifest is derived from package.json.
type npmManifest struct {
	locked   bool
	hasBuild bool
}

type packageFile struct {
	Scripts map[string]string `json:"scripts"`
}

func loadNpmManifest(dir, path string) (*npmManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var pkg packageFile
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", packageJSON, err)
	}

	m := &npmManifest{hasBuild: pkg.Scripts["build"] != ""}
	for _, lock := range npmLockfiles {
		if files.Exists(filepath.Join(dir, lock)) {
			m.locked = true
			break
		}
	}
	return m, nil
}

func (m *npmManifest) Kind() string { return "npm" }

func (m *npmManifest) InstallCmd() *execx.Cmd {
	if m.locked {
		return &execx.Cmd{Name: "npm", Args: []string{"ci"}}
	}
	return &execx.Cmd{Name: "npm", Args: []string{"install"}}
}

func (m *npmManifest) BuildCmd() *execx.Cmd {
	if !m.hasBuild {
		return nil
	}
	return &execx.Cmd{Name: "npm", Args: []string{"run", "build"}}
}
