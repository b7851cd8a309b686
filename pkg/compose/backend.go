package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parrotstack/parrot/pkg/infra/logger"
	"github.com/parrotstack/parrot/pkg/pipeline"
)

// gpuEnvVar is the device-visibility variable injected into accelerated
// backend services.
const gpuEnvVar = "CUDA_VISIBLE_DEVICES"

// engineSpec describes a loadable backend engine: where its compose file
// lives, which of its services answers requests, and how callers reach it
// on the shared network.
type engineSpec struct {
	// Dir is the engine's directory under the backends root.
	Dir string
	// PrimaryService is the service name clients connect to.
	PrimaryService string
	// Port and Path form the internal URL on the shared network.
	Port int
	Path string
	// DefaultRole is the role the engine's own compose file is written
	// for. Loading it for any other role suffixes every service name.
	DefaultRole pipeline.Role
	// ModelFlag is the command-line flag whose argument selects the
	// model; empty when the engine takes no model argument.
	ModelFlag string
	// DefaultModel is the model used when the operator selects none.
	// It matches the literal baked into the engine's own compose file,
	// so the substituted placeholder always resolves.
	DefaultModel string
	// NonGPUServices are auxiliary sibling services that never receive
	// the device-visibility variable.
	NonGPUServices []string
}

// engines maps engine identifiers to their specs. Only engines listed
// here are loadable; unknown engines degrade to "backend unavailable"
// rather than failing the run.
var engines = map[string]engineSpec{
	"faster-whisper": {
		Dir:            "faster-whisper",
		PrimaryService: "whisper-worker",
		Port:           5008,
		Path:           "/asr",
		DefaultRole:    pipeline.RoleSTT,
		ModelFlag:      "--model",
		DefaultModel:   "large-v2",
	},
	"vllm": {
		Dir:            "vllm",
		PrimaryService: "vllm-server",
		Port:           8000,
		Path:           "/v1",
		DefaultRole:    pipeline.RoleLLM,
		ModelFlag:      "--model",
		DefaultModel:   "meta-llama/Llama-3.1-8B-Instruct",
	},
	"tts-kokoro": {
		Dir:            "tts-kokoro",
		PrimaryService: "kokoro-tts",
		Port:           8880,
		Path:           "/v1/audio/speech",
		DefaultRole:    pipeline.RoleTTS,
	},
	"huggingface-tgi": {
		Dir:            "huggingface-tgi",
		PrimaryService: "tgi-server",
		Port:           8080,
		Path:           "/v1",
		DefaultRole:    pipeline.RoleLLM,
		ModelFlag:      "--model-id",
		DefaultModel:   "mistralai/Mistral-7B-Instruct-v0.3",
		NonGPUServices: []string{"tgi-gateway"},
	},
}

// KnownEngine reports whether the engine identifier is loadable.
func KnownEngine(engine string) bool {
	_, ok := engines[engine]
	return ok
}

// BackendHost returns the service hostname the engine answers on when
// loaded for role, accounting for the role-suffix renaming.
func BackendHost(engine string, role pipeline.Role) (string, bool) {
	spec, ok := engines[engine]
	if !ok {
		return "", false
	}
	if role != spec.DefaultRole {
		return spec.PrimaryService + "-" + string(role), true
	}
	return spec.PrimaryService, true
}

// BackendURL returns the internal URL for the engine on the shared
// network when loaded for role.
func BackendURL(engine string, role pipeline.Role) (string, bool) {
	spec, ok := engines[engine]
	if !ok {
		return "", false
	}
	host, _ := BackendHost(engine, role)
	return fmt.Sprintf("http://%s:%d%s", host, spec.Port, spec.Path), true
}

// ModelVar returns the env file variable holding the model identifier
// for a role.
func ModelVar(role pipeline.Role) string {
	if role == pipeline.RoleLLM {
		return "MODEL_ID"
	}
	return strings.ToUpper(string(role)) + "_BACKEND_MODEL"
}

// BackendOptions configures one backend load.
type BackendOptions struct {
	// Engine is the engine identifier, e.g. "faster-whisper" or "vllm".
	Engine string
	// Role is the backend role this instance serves.
	Role pipeline.Role
	// GPUDevice is the device id made visible to accelerated services;
	// empty runs the backend on CPU.
	GPUDevice string
	// BackendsDir is the root directory holding one subdirectory per
	// engine.
	BackendsDir string
}

// LoadBackend reads an engine's own compose document and rewires it for
// embedding into the aggregate stack. It returns (nil, nil) for unknown
// engines and missing compose files, logging a warning, so the caller
// proceeds without that backend.
//
// The document is loaded fresh from disk on every call: composing the
// same engine for two roles yields two structurally independent
// documents.
func LoadBackend(opts BackendOptions) (*Document, error) {
	spec, ok := engines[opts.Engine]
	if !ok {
		logger.Warn("unsupported backend engine, skipping", "engine", opts.Engine, "role", opts.Role)
		return nil, nil
	}

	dir := filepath.Join(opts.BackendsDir, spec.Dir)
	doc, err := loadBackendFile(dir)
	if err != nil {
		logger.Warn("backend compose file unavailable, skipping",
			"engine", opts.Engine, "role", opts.Role, "dir", dir, "error", err)
		return nil, nil
	}

	// Rename first so the later steps see final service names.
	if opts.Role != spec.DefaultRole {
		renameServices(doc, "-"+string(opts.Role))
	}

	for name, svc := range doc.Services {
		// An embedded backend is reachable only through the internal
		// network, never host-exposed.
		svc.Ports = nil
		svc.EnsureNetwork(SharedNetwork)

		if spec.ModelFlag != "" {
			svc.Command.ReplaceFlagValue(spec.ModelFlag, "${"+ModelVar(opts.Role)+"}")
		}

		if opts.GPUDevice != "" && !isNonGPU(spec, opts.Role, name) {
			if svc.Environment == nil {
				svc.Environment = &EnvVars{}
			}
			svc.Environment.Set(gpuEnvVar, opts.GPUDevice)
		}
	}

	if doc.Networks == nil {
		doc.Networks = map[string]map[string]any{}
	}
	if _, ok := doc.Networks[SharedNetwork]; !ok {
		doc.Networks[SharedNetwork] = nil
	}

	return doc, nil
}

func loadBackendFile(dir string) (*Document, error) {
	for _, name := range []string{"docker-compose.yaml", "docker-compose.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("no docker-compose.yaml in %s", dir)
}

// renameServices appends suffix to every service name in doc and
// rewrites every reference to the old names: depends_on entries in both
// shapes, and any environment value embedding an old name as a hostname.
// A stale reference left behind is an unreachable dependency at
// container-startup time, so the rewrite walks every service.
func renameServices(doc *Document, suffix string) {
	renames := make(map[string]string, len(doc.Services))
	for name := range doc.Services {
		renames[name] = name + suffix
	}

	renamed := make(map[string]*Service, len(doc.Services))
	for name, svc := range doc.Services {
		if svc.ContainerName != "" {
			svc.ContainerName += suffix
		}
		renamed[renames[name]] = svc
	}
	doc.Services = renamed

	for _, svc := range doc.Services {
		for oldName, newName := range renames {
			svc.DependsOn.Rename(oldName, newName)
		}
		svc.Environment.RewriteValues(func(value string) string {
			return rewriteHostnames(value, renames)
		})
	}
}

// rewriteHostnames replaces whole-hostname occurrences of the renamed
// services inside value. Matches are bounded by non-hostname characters
// so a service name that prefixes another ("whisper" vs "whisper-worker")
// is never clipped.
func rewriteHostnames(value string, renames map[string]string) string {
	for oldName, newName := range renames {
		value = replaceHostname(value, oldName, newName)
	}
	return value
}

func replaceHostname(value, oldName, newName string) string {
	var out strings.Builder
	for {
		idx := strings.Index(value, oldName)
		if idx < 0 {
			out.WriteString(value)
			return out.String()
		}
		before := value[:idx]
		after := value[idx+len(oldName):]
		if boundedBefore(before) && boundedAfter(after) {
			out.WriteString(before)
			out.WriteString(newName)
		} else {
			out.WriteString(value[:idx+len(oldName)])
		}
		value = after
	}
}

func boundedBefore(s string) bool {
	if s == "" {
		return true
	}
	return !isHostnameChar(s[len(s)-1])
}

func boundedAfter(s string) bool {
	if s == "" {
		return true
	}
	return !isHostnameChar(s[0])
}

func isHostnameChar(c byte) bool {
	return c == '-' || c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNonGPU(spec engineSpec, role pipeline.Role, serviceName string) bool {
	base := serviceName
	if role != spec.DefaultRole {
		base = strings.TrimSuffix(serviceName, "-"+string(role))
	}
	for _, aux := range spec.NonGPUServices {
		if base == aux {
			return true
		}
	}
	return false
}
