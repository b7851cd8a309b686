// Package pipeline holds the static registry of deployable pipeline types.
//
// A pipeline type names the set of component templates that make up its
// docker-compose stack, the backend roles it talks to, and a few per-type
// feature flags. The registry is fixed at compile time; every lookup either
// resolves to exactly one definition or reports ErrUnknownType.
package pipeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownType is returned when a pipeline type is not registered.
var ErrUnknownType = errors.New("unknown pipeline type")

// Role identifies a backend capability slot of a pipeline.
type Role string

const (
	RoleSTT                   Role = "stt"
	RoleMT                    Role = "mt"
	RoleTTS                   Role = "tts"
	RoleSummarizer            Role = "summarizer"
	RoleTextStructurerOnline  Role = "text_structurer_online"
	RoleTextStructurerOffline Role = "text_structurer_offline"
	RoleSlideTranslator       Role = "slide_translator"
	RoleLLM                   Role = "llm"
)

// Definition describes one pipeline type.
type Definition struct {
	// Templates are the component templates merged into the compose file,
	// in merge order. The first entry is the base document.
	Templates []string
	// Roles are the backend roles whose URL/engine keys the pipeline reads.
	Roles []Role
	// SpeechTranslation marks pipelines that run the ASR component in
	// speech-to-text-with-translation mode instead of chaining a separate
	// MT stage.
	SpeechTranslation bool
	// SlideSupport enables slide upload and translation in the frontend.
	SlideSupport bool
	// DefaultEngines maps roles to the engine used when the operator
	// does not choose one explicitly. Every type defaults its STT role
	// so a plain local deployment carries a working speech backend.
	DefaultEngines map[Role]string
}

var definitions = map[string]Definition{
	"end2end": {
		Templates:         []string{"middleware", "asr"},
		Roles:             []Role{RoleSTT},
		SpeechTranslation: true,
		DefaultEngines:    map[Role]string{RoleSTT: "faster-whisper"},
	},
	"cascaded": {
		Templates:      []string{"middleware", "asr", "mt"},
		Roles:          []Role{RoleSTT, RoleMT},
		DefaultEngines: map[Role]string{RoleSTT: "faster-whisper", RoleMT: "vllm"},
	},
	"LT.2025": {
		Templates: []string{"middleware", "asr", "mt", "tts", "dialog", "markup"},
		Roles: []Role{
			RoleSTT, RoleMT, RoleTTS,
			RoleSummarizer, RoleTextStructurerOnline, RoleTextStructurerOffline,
			RoleLLM,
		},
		DefaultEngines: map[Role]string{RoleSTT: "faster-whisper", RoleTTS: "tts-kokoro"},
	},
	"dialog": {
		Templates:      []string{"middleware", "asr", "tts", "dialog"},
		Roles:          []Role{RoleSTT, RoleTTS, RoleLLM},
		DefaultEngines: map[Role]string{RoleSTT: "faster-whisper", RoleTTS: "tts-kokoro"},
	},
	"BOOM-light": {
		Templates: []string{"middleware", "asr", "tts", "dialog", "markup", "boom"},
		Roles: []Role{
			RoleSTT, RoleMT, RoleTTS,
			RoleSummarizer, RoleTextStructurerOnline, RoleTextStructurerOffline,
			RoleSlideTranslator, RoleLLM,
		},
		SpeechTranslation: true,
		SlideSupport:      true,
		DefaultEngines:    map[Role]string{RoleSTT: "faster-whisper", RoleTTS: "tts-kokoro"},
	},
	"BOOM": {
		Templates: []string{"middleware", "asr", "tts", "dialog", "markup", "boom"},
		Roles: []Role{
			RoleSTT, RoleMT, RoleTTS,
			RoleSummarizer, RoleTextStructurerOnline, RoleTextStructurerOffline,
			RoleSlideTranslator, RoleLLM,
		},
		SpeechTranslation: true,
		SlideSupport:      true,
		DefaultEngines:    map[Role]string{RoleSTT: "faster-whisper", RoleTTS: "tts-kokoro"},
	},
}

// Types returns the registered pipeline type names, sorted.
func Types() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the pipeline type is registered.
func Has(pipelineType string) bool {
	_, ok := definitions[pipelineType]
	return ok
}

// Get returns the definition for the pipeline type.
func Get(pipelineType string) (Definition, error) {
	def, ok := definitions[pipelineType]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownType, pipelineType)
	}
	return def, nil
}

// TemplatesFor returns the component templates for the pipeline type,
// as a fresh slice so callers may not mutate the registry.
func TemplatesFor(pipelineType string) ([]string, error) {
	def, err := Get(pipelineType)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(def.Templates))
	copy(out, def.Templates)
	return out, nil
}

// RolesUsed returns the backend roles of the pipeline type.
func RolesUsed(pipelineType string) ([]Role, error) {
	def, err := Get(pipelineType)
	if err != nil {
		return nil, err
	}
	out := make([]Role, len(def.Roles))
	copy(out, def.Roles)
	return out, nil
}

// UsesRole reports whether the pipeline type reads the given role's
// configuration keys. Unknown types are treated permissively: the role is
// assumed used, so env generation for an unregistered type never silently
// drops keys. Template selection must go through Get and fail hard instead.
func UsesRole(pipelineType string, role Role) bool {
	def, ok := definitions[pipelineType]
	if !ok {
		return true
	}
	for _, r := range def.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UsesSpeechTranslation reports the speech-to-text-with-translation flag.
// Unknown types report false.
func UsesSpeechTranslation(pipelineType string) bool {
	return definitions[pipelineType].SpeechTranslation
}

// SlidesSupported reports whether the pipeline type supports slides.
// Unknown types report false.
func SlidesSupported(pipelineType string) bool {
	return definitions[pipelineType].SlideSupport
}

// DefaultEngine returns the default engine for a role, or "" when the
// role has no default for this pipeline type.
func DefaultEngine(pipelineType string, role Role) string {
	return definitions[pipelineType].DefaultEngines[role]
}
