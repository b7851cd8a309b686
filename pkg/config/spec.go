package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parrotstack/parrot/pkg/pipeline"
)

// ErrConfigurationNotFound is returned when a named pipeline configuration
// does not exist under the configuration directory.
var ErrConfigurationNotFound = errors.New("configuration not found")

// BackendSpec selects one inference engine for a pipeline role.
type BackendSpec struct {
	Engine string `yaml:"engine,omitempty"`
	Model  string `yaml:"model,omitempty"`
	GPU    string `yaml:"gpu,omitempty"`
	// URL points at an already-running server and is used instead of
	// Engine when the backends mode is external, and for roles that are
	// reached by URL only.
	URL string `yaml:"url,omitempty"`
}

// PipelineSpec is the persisted description of one deployment
// configuration. It is saved as <config_dir>/<name>/<name>.yaml and
// re-read by every command that operates on the configuration.
type PipelineSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Domain string `yaml:"domain"`

	HTTPPort          int `yaml:"http_port,omitempty"`
	ExternalPort      int `yaml:"external_port,omitempty"`
	ExternalHTTPSPort int `yaml:"external_https_port,omitempty"`

	Theme   string `yaml:"theme,omitempty"`
	HFToken string `yaml:"hf_token,omitempty"`
	Debug   bool   `yaml:"debug,omitempty"`

	// Backends is local, distributed, or external.
	Backends string                        `yaml:"backends"`
	Roles    map[pipeline.Role]BackendSpec `yaml:"roles,omitempty"`

	HTTPS              bool   `yaml:"https,omitempty"`
	HTTPSPort          int    `yaml:"https_port,omitempty"`
	ACMEEmail          string `yaml:"acme_email,omitempty"`
	ACMEStaging        bool   `yaml:"acme_staging,omitempty"`
	ForceHTTPSRedirect bool   `yaml:"force_https_redirect,omitempty"`
}

func (s *PipelineSpec) Validate() error {
	if s.Name == "" {
		return errors.New("configuration name is empty")
	}
	if strings.ContainsAny(s.Name, "/\\ ") {
		return fmt.Errorf("invalid configuration name: %q", s.Name)
	}
	if !pipeline.Has(s.Type) {
		return fmt.Errorf("%w: %s (valid: %s)", pipeline.ErrUnknownType, s.Type, strings.Join(pipeline.Types(), ", "))
	}

	switch s.Backends {
	case "local", "distributed", "external":
	default:
		return fmt.Errorf("invalid backends mode: %s (valid: local, distributed, external)", s.Backends)
	}

	if s.HTTPS && s.ACMEEmail == "" && !isLocalhostDomain(s.Domain) {
		return errors.New("https requires acme_email for non-localhost domains")
	}

	return nil
}

// LocalhostDomain reports whether the configured domain resolves to the
// local machine without DNS.
func (s *PipelineSpec) LocalhostDomain() bool {
	return isLocalhostDomain(s.Domain)
}

func isLocalhostDomain(domain string) bool {
	return domain == "localhost" || strings.HasSuffix(domain, ".localhost")
}

// SpecPath returns the path of the spec file for a named configuration.
func SpecPath(configDir, name string) string {
	return filepath.Join(configDir, name, name+".yaml")
}

// ConfigurationDir returns the directory holding a named configuration's
// generated artifacts.
func ConfigurationDir(configDir, name string) string {
	return filepath.Join(configDir, name)
}

func LoadSpec(configDir, name string) (*PipelineSpec, error) {
	data, err := os.ReadFile(SpecPath(configDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigurationNotFound, name)
		}
		return nil, fmt.Errorf("read spec file: %w", err)
	}

	var spec PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode spec file: %w", err)
	}

	if spec.Name == "" {
		spec.Name = name
	}

	return &spec, nil
}

func SaveSpec(configDir string, spec *PipelineSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	dir := ConfigurationDir(configDir, spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create configuration directory: %w", err)
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".spec-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write spec: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, SpecPath(configDir, spec.Name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace spec file: %w", err)
	}

	return nil
}

// ListConfigurations returns the names of saved configurations, sorted by
// the directory iteration order of os.ReadDir (lexical).
func ListConfigurations(configDir string) ([]string, error) {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read configuration directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(SpecPath(configDir, entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}
