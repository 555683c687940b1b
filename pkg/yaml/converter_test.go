package yaml

import "testing"

type buildFile struct {
	Install []string `yaml:"install"`
	Build   []string `yaml:"build"`
}

func TestUnmarshalYAMLStrict(t *testing.T) {
	var out buildFile
	err := UnmarshalYAMLStrict([]byte("install: [npm, ci]\nbuild:\n  - npm\n  - run\n  - build\n"), &out)
	if err != nil {
		t.Fatalf("UnmarshalYAMLStrict() error = %v", err)
	}
	if len(out.Install) != 2 || out.Build[2] != "build" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestUnmarshalYAMLStrictRejectsUnknownField(t *testing.T) {
	var out buildFile
	if err := UnmarshalYAMLStrict([]byte("instal: [npm, ci]\n"), &out); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err := UnmarshalYAMLStrict([]byte("install: [npm\n"), &out); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
