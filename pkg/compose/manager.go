package compose

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/parrotstack/parrot/pkg/infra/logger"
	"github.com/parrotstack/parrot/pkg/pipeline"
)

// Manager generates the deployment artifacts for one pipeline
// configuration: the merged compose document, the reverse-proxy and
// identity-provider configs, and the .env file.
type Manager struct {
	loader      *Loader
	proxyFS     fs.FS
	idpFS       fs.FS
	backendsDir string
}

// Option configures a Manager.
type Option func(*Manager)

// WithTemplateFS overrides the component, proxy, and identity-provider
// template filesystems, e.g. with an on-disk template directory.
func WithTemplateFS(components, proxy, idp fs.FS) Option {
	return func(m *Manager) {
		m.loader = NewLoader(components)
		m.proxyFS = proxy
		m.idpFS = idp
	}
}

// NewManager creates a Manager reading templates from the given
// filesystems and backend compose files from backendsDir.
func NewManager(components, proxy, idp fs.FS, backendsDir string, opts ...Option) *Manager {
	m := &Manager{
		loader:      NewLoader(components),
		proxyFS:     proxy,
		idpFS:       idp,
		backendsDir: backendsDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateCompose builds the merged compose document for a pipeline type.
// Unknown pipeline types fail hard; unavailable backends are skipped with
// a warning. In external backend mode no backend stacks are embedded.
func (m *Manager) GenerateCompose(pipelineType string, rc RenderContext, mode string, backends map[pipeline.Role]BackendSelection) (*Document, error) {
	components, err := pipeline.TemplatesFor(pipelineType)
	if err != nil {
		return nil, err
	}

	doc, err := m.loader.LoadAll(components, rc)
	if err != nil {
		return nil, err
	}

	if mode == BackendsExternal {
		return doc, nil
	}

	for _, role := range envRoleOrder {
		if !pipeline.UsesRole(pipelineType, role) || urlOnlyRoles[role] {
			continue
		}
		engine := backends[role].Engine
		if engine == "" {
			engine = pipeline.DefaultEngine(pipelineType, role)
		}
		if engine == "" {
			continue
		}
		backendDoc, err := LoadBackend(BackendOptions{
			Engine:      engine,
			Role:        role,
			GPUDevice:   backends[role].GPU,
			BackendsDir: m.backendsDir,
		})
		if err != nil {
			return nil, fmt.Errorf("load backend %s for role %s: %w", engine, role, err)
		}
		if backendDoc == nil {
			continue
		}
		doc, err = Merge([]*Document{doc, backendDoc})
		if err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// GenerateEnvFile writes the .env file for the configuration into outDir.
func (m *Manager) GenerateEnvFile(outDir string, p EnvParams) error {
	if p.ACMEStorageDir == "" {
		p.ACMEStorageDir = filepath.Join(outDir, "acme", p.Domain)
	}
	if p.BackendsDir == "" {
		p.BackendsDir = m.backendsDir
	}
	path := filepath.Join(outDir, ".env")
	if err := BuildEnv(p).Write(path); err != nil {
		return err
	}
	logger.Info("generated env file", "path", path)
	return nil
}

// GenerateProxyFiles renders the reverse-proxy configuration and the
// basic-auth credential file into outDir/traefik. The credential file is
// created with owner-only permissions.
func (m *Manager) GenerateProxyFiles(configName, passwordHash, outDir string) error {
	proxyDir := filepath.Join(outDir, "traefik")
	if err := os.MkdirAll(filepath.Join(proxyDir, "auth"), 0o755); err != nil {
		return fmt.Errorf("create traefik directory: %w", err)
	}

	content, err := fs.ReadFile(m.proxyFS, "traefik.yaml.tpl")
	if err != nil {
		return fmt.Errorf("%w: traefik.yaml.tpl", ErrTemplateNotFound)
	}
	rendered := strings.ReplaceAll(string(content), "CONFIG_NAME", configName)
	target := filepath.Join(proxyDir, "traefik.yaml")
	if err := os.WriteFile(target, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write traefik config: %w", err)
	}
	logger.Info("generated proxy config", "path", target)

	auth, err := fs.ReadFile(m.proxyFS, "basicauth.txt.tpl")
	if err != nil {
		return fmt.Errorf("%w: basicauth.txt.tpl", ErrTemplateNotFound)
	}
	creds := strings.ReplaceAll(string(auth), "ENCRYPTED_ADMIN_PASSWORD", passwordHash)
	authPath := filepath.Join(proxyDir, "auth", "basicauth.txt")
	if err := os.WriteFile(authPath, []byte(creds), 0o600); err != nil {
		return fmt.Errorf("write basicauth file: %w", err)
	}
	logger.Info("generated basicauth file", "path", authPath)

	return nil
}

// GenerateProxyRules renders the routing rules file into outDir/traefik.
func (m *Manager) GenerateProxyRules(outDir string) error {
	content, err := fs.ReadFile(m.proxyFS, "rules.ini.tpl")
	if err != nil {
		return fmt.Errorf("%w: rules.ini.tpl", ErrTemplateNotFound)
	}
	proxyDir := filepath.Join(outDir, "traefik")
	if err := os.MkdirAll(proxyDir, 0o755); err != nil {
		return fmt.Errorf("create traefik directory: %w", err)
	}
	target := filepath.Join(proxyDir, "rules.ini")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("write proxy rules: %w", err)
	}
	logger.Info("generated proxy rules", "path", target)
	return nil
}

// GenerateIdPConfig renders the identity-provider configuration into
// outDir/dex.
func (m *Manager) GenerateIdPConfig(outDir string) error {
	content, err := fs.ReadFile(m.idpFS, "dex.yaml.tpl")
	if err != nil {
		return fmt.Errorf("%w: dex.yaml.tpl", ErrTemplateNotFound)
	}
	idpDir := filepath.Join(outDir, "dex")
	if err := os.MkdirAll(idpDir, 0o755); err != nil {
		return fmt.Errorf("create dex directory: %w", err)
	}
	target := filepath.Join(idpDir, "dex.yaml")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		return fmt.Errorf("write dex config: %w", err)
	}
	logger.Info("generated identity provider config", "path", target)
	return nil
}
