package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parrotstack/parrot/pkg/pipeline"
)

// Backend integration modes.
const (
	BackendsLocal       = "local"
	BackendsDistributed = "distributed"
	BackendsExternal    = "external"
)

// BackendSelection is the per-role engine choice driving env generation.
type BackendSelection struct {
	// Engine identifies the implementation for local/distributed modes.
	Engine string
	// Model selects the engine's model; empty keeps the engine default.
	Model string
	// GPU is the device id for the role, empty for CPU.
	GPU string
	// URL is the externally supplied endpoint, used verbatim in
	// external mode and for roles with no local engine.
	URL string
}

// EnvParams is the explicit parameter set for one env file generation.
// All values are resolved by the caller; the writer only decides which
// keys the active pipeline type needs.
type EnvParams struct {
	PipelineType string
	PipelineName string
	Domain       string
	Theme        string

	HTTPPort          int
	ExternalPort      int // 0 falls back to HTTPPort
	HTTPSPort         int
	ExternalHTTPSPort int // 0 falls back to HTTPSPort

	Debug              bool
	EnableHTTPS        bool
	ACMEEmail          string
	ACMEStaging        bool
	ForceHTTPSRedirect bool

	HFToken string

	// BackendsMode is one of local, distributed, external.
	BackendsMode string
	Backends     map[pipeline.Role]BackendSelection

	ComponentsDir  string
	BackendsDir    string
	ACMEStorageDir string

	HostUID   int
	HostGID   int
	DockerGID int
}

// EnvFile is an ordered, append-only sequence of KEY=value lines.
type EnvFile struct {
	lines []string
}

// Add appends a KEY=value line.
func (f *EnvFile) Add(key, value string) {
	f.lines = append(f.lines, key+"="+value)
}

// AddInt appends a KEY=value line with an integer value.
func (f *EnvFile) AddInt(key string, value int) {
	f.Add(key, fmt.Sprintf("%d", value))
}

// AddBool appends a KEY=true/false line.
func (f *EnvFile) AddBool(key string, value bool) {
	f.Add(key, fmt.Sprintf("%t", value))
}

// Lines returns the accumulated lines.
func (f *EnvFile) Lines() []string {
	return f.lines
}

// String renders the env file content, newline-terminated.
func (f *EnvFile) String() string {
	if len(f.lines) == 0 {
		return ""
	}
	return strings.Join(f.lines, "\n") + "\n"
}

// Write writes the env file to path atomically, creating the output
// directory if absent and overwriting any existing file.
func (f *EnvFile) Write(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("create temp env file: %w", err)
	}
	if _, err := tmp.WriteString(f.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close env file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace env file: %w", err)
	}
	return nil
}

// envRoleOrder fixes the emission order of the optional backend roles.
var envRoleOrder = []pipeline.Role{
	pipeline.RoleSTT,
	pipeline.RoleMT,
	pipeline.RoleTTS,
	pipeline.RoleSummarizer,
	pipeline.RoleTextStructurerOnline,
	pipeline.RoleTextStructurerOffline,
	pipeline.RoleSlideTranslator,
	pipeline.RoleLLM,
}

// urlOnlyRoles have no local engine table entry: their endpoint always
// comes from an explicitly supplied URL, whatever the backend mode.
var urlOnlyRoles = map[pipeline.Role]bool{
	pipeline.RoleSummarizer:            true,
	pipeline.RoleTextStructurerOnline:  true,
	pipeline.RoleTextStructurerOffline: true,
	pipeline.RoleSlideTranslator:       true,
}

// BuildEnv computes the env file for one configuration. The preamble of
// infrastructure keys is unconditional; each backend role's keys are
// emitted only when the active pipeline type uses that role, and never
// partially: a role with no resolvable endpoint contributes nothing.
func BuildEnv(p EnvParams) *EnvFile {
	externalPort := p.ExternalPort
	if externalPort == 0 {
		externalPort = p.HTTPPort
	}
	externalHTTPSPort := p.ExternalHTTPSPort
	if externalHTTPSPort == 0 {
		externalHTTPSPort = p.HTTPSPort
	}

	f := &EnvFile{}
	f.Add("DOMAIN", p.Domain)
	f.Add("FRONTEND_THEME", p.Theme)
	f.AddInt("HTTP_PORT", p.HTTPPort)
	f.Add("DOMAIN_PORT", fmt.Sprintf("%s:%d", p.Domain, p.HTTPPort))
	f.AddInt("EXTERNAL_PORT", externalPort)
	f.Add("EXTERNAL_DOMAIN_PORT", fmt.Sprintf("%s:%d", p.Domain, externalPort))
	f.Add("PIPELINE_NAME", p.PipelineName)
	f.AddInt("HOST_UID", p.HostUID)
	f.AddInt("HOST_GID", p.HostGID)
	f.AddInt("DOCKER_GID", p.DockerGID)
	f.Add("COMPONENTS_DIR", p.ComponentsDir)
	f.Add("BACKENDS_DIR", p.BackendsDir)
	f.Add("BACKENDS", p.BackendsMode)
	f.AddBool("DEBUG_MODE", p.Debug)
	f.AddBool("ENABLE_HTTPS", p.EnableHTTPS)
	f.AddInt("HTTPS_PORT", p.HTTPSPort)
	f.AddInt("EXTERNAL_HTTPS_PORT", externalHTTPSPort)
	f.Add("ACME_EMAIL", p.ACMEEmail)
	f.AddBool("ACME_STAGING", p.ACMEStaging)
	f.Add("ACME_STORAGE_DIR", p.ACMEStorageDir)
	f.AddBool("FORCE_HTTPS_REDIRECT", p.ForceHTTPSRedirect)
	f.Add("HF_TOKEN", p.HFToken)
	f.AddBool("USE_SLT", pipeline.UsesSpeechTranslation(p.PipelineType))
	f.AddBool("SLIDE_SUPPORT", pipeline.SlidesSupported(p.PipelineType))

	for _, role := range envRoleOrder {
		if !pipeline.UsesRole(p.PipelineType, role) {
			continue
		}
		emitRole(f, p, role)
	}

	return f
}

func emitRole(f *EnvFile, p EnvParams, role pipeline.Role) {
	sel := p.Backends[role]

	if p.BackendsMode == BackendsExternal || urlOnlyRoles[role] {
		if sel.URL == "" {
			return
		}
		f.Add(urlVar(role), sel.URL)
		return
	}

	// Local/distributed: the URL is synthesized from the engine table,
	// never taken from user input.
	engine := sel.Engine
	if engine == "" {
		engine = pipeline.DefaultEngine(p.PipelineType, role)
	}
	if engine == "" {
		return
	}
	url, ok := BackendURL(engine, role)
	if !ok {
		// Unknown engine: the backend was skipped during composition,
		// leave the role unconfigured rather than emit a dead URL.
		return
	}

	f.Add(urlVar(role), url)
	f.Add(engineVar(role), engine)
	model := sel.Model
	if model == "" {
		// The backend command references the model variable, so the
		// key must resolve even without an explicit selection.
		model = engines[engine].DefaultModel
	}
	if model != "" {
		f.Add(ModelVar(role), model)
	}
	if sel.GPU != "" {
		f.Add(gpuVar(role), sel.GPU)
	}
}

func urlVar(role pipeline.Role) string {
	switch role {
	case pipeline.RoleSummarizer:
		return "SUMMARIZER_BACKEND_URL"
	case pipeline.RoleTextStructurerOnline:
		return "TEXT_STRUCTURER_ONLINE_URL"
	case pipeline.RoleTextStructurerOffline:
		return "TEXT_STRUCTURER_OFFLINE_URL"
	case pipeline.RoleSlideTranslator:
		return "SLIDE_TRANSLATOR_URL"
	default:
		return strings.ToUpper(string(role)) + "_BACKEND_URL"
	}
}

func engineVar(role pipeline.Role) string {
	return strings.ToUpper(string(role)) + "_BACKEND_ENGINE"
}

func gpuVar(role pipeline.Role) string {
	return strings.ToUpper(string(role)) + "_BACKEND_GPU"
}
