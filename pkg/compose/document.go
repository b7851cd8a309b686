// Package compose generates docker-compose deployment descriptors for
// speech/LLM pipelines: it loads component templates, merges them, embeds
// backend engine stacks, and writes the compose document and its .env file.
package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SharedNetwork is the internal network every pipeline service attaches to.
const SharedNetwork = "pipeline"

// Document is an in-memory docker-compose document. Only the three
// top-level sections the generator manipulates are modeled; everything
// else inside a service survives round-trips via the inline Extra map.
type Document struct {
	Services map[string]*Service       `yaml:"services,omitempty"`
	Networks map[string]map[string]any `yaml:"networks,omitempty"`
	Volumes  map[string]map[string]any `yaml:"volumes,omitempty"`
}

// Service is a single compose service entry. Fields whose wire shape is
// ambiguous in compose (string-or-list, list-or-mapping) use explicit
// union types instead of any-typed values.
type Service struct {
	Image         string     `yaml:"image,omitempty"`
	Build         *BuildSpec `yaml:"build,omitempty"`
	ContainerName string     `yaml:"container_name,omitempty"`
	Restart       string     `yaml:"restart,omitempty"`
	Command       *Command   `yaml:"command,omitempty"`
	Ports         []any      `yaml:"ports,omitempty"`
	Environment   *EnvVars   `yaml:"environment,omitempty"`
	Networks      []string   `yaml:"networks,omitempty"`
	Volumes       []any      `yaml:"volumes,omitempty"`
	DependsOn     *DependsOn `yaml:"depends_on,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// Parse parses a compose document from YAML bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse compose document: %w", err)
	}
	return &doc, nil
}

// LoadFile reads and parses a compose document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}
	return Parse(data)
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal compose document: %w", err)
	}
	return data, nil
}

// Save writes the document to path, creating parent directories as needed.
func (d *Document) Save(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}
	return nil
}

// EnsureNetwork attaches the service to the named network if it is not
// already listed.
func (s *Service) EnsureNetwork(name string) {
	for _, n := range s.Networks {
		if n == name {
			return
		}
	}
	s.Networks = append(s.Networks, name)
}

// BuildSpec is the compose `build` field: either a context path string or
// a mapping with context/dockerfile/args.
type BuildSpec struct {
	Context string         // set for the scalar form
	Object  map[string]any // set for the mapping form
}

func (b *BuildSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		b.Object = nil
		return value.Decode(&b.Context)
	case yaml.MappingNode:
		b.Context = ""
		return value.Decode(&b.Object)
	default:
		return fmt.Errorf("build: unsupported YAML node kind %d", value.Kind)
	}
}

func (b BuildSpec) MarshalYAML() (any, error) {
	if b.Object != nil {
		return b.Object, nil
	}
	return b.Context, nil
}

// Command is the compose `command` field: either a shell string or an
// argv list.
type Command struct {
	Shell string   // set for the scalar form
	Argv  []string // set for the sequence form
}

func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		c.Argv = nil
		return value.Decode(&c.Shell)
	case yaml.SequenceNode:
		c.Shell = ""
		return value.Decode(&c.Argv)
	default:
		return fmt.Errorf("command: unsupported YAML node kind %d", value.Kind)
	}
}

func (c Command) MarshalYAML() (any, error) {
	if c.Argv != nil {
		return c.Argv, nil
	}
	return c.Shell, nil
}

// ReplaceFlagValue substitutes the argument following flag with value, in
// whichever shape the command uses. Returns true when a substitution
// happened.
func (c *Command) ReplaceFlagValue(flag, value string) bool {
	if c == nil {
		return false
	}
	if c.Argv != nil {
		for i := 0; i < len(c.Argv)-1; i++ {
			if c.Argv[i] == flag {
				c.Argv[i+1] = value
				return true
			}
		}
		return false
	}
	fields := strings.Fields(c.Shell)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] == flag {
			fields[i+1] = value
			c.Shell = strings.Join(fields, " ")
			return true
		}
	}
	return false
}

// EnvVars is the compose `environment` field. Compose allows both an
// ordered list of KEY=value strings and a key/value mapping; both shapes
// are kept as-written so generated files stay diffable against their
// templates.
type EnvVars struct {
	IsMap bool

	// List form.
	List []string

	// Mapping form; Keys preserves insertion order.
	Keys   []string
	Values map[string]string
}

func (e *EnvVars) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		e.IsMap = false
		e.Keys, e.Values = nil, nil
		return value.Decode(&e.List)
	case yaml.MappingNode:
		e.IsMap = true
		e.List = nil
		e.Keys = nil
		e.Values = make(map[string]string, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			var val string
			if err := value.Content[i+1].Decode(&val); err != nil {
				return fmt.Errorf("environment value for %s: %w", key, err)
			}
			e.Keys = append(e.Keys, key)
			e.Values[key] = val
		}
		return nil
	default:
		return fmt.Errorf("environment: unsupported YAML node kind %d", value.Kind)
	}
}

func (e EnvVars) MarshalYAML() (any, error) {
	if !e.IsMap {
		return e.List, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range e.Keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Values[k]},
		)
	}
	return node, nil
}

// Get returns the value for key and whether it is present.
func (e *EnvVars) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	if e.IsMap {
		v, ok := e.Values[key]
		return v, ok
	}
	prefix := key + "="
	for _, entry := range e.List {
		if strings.HasPrefix(entry, prefix) {
			return entry[len(prefix):], true
		}
	}
	return "", false
}

// Set replaces an existing entry for key in place, or appends a new one,
// in whichever shape the variables use.
func (e *EnvVars) Set(key, value string) {
	if e.IsMap {
		if e.Values == nil {
			e.Values = make(map[string]string)
		}
		if _, ok := e.Values[key]; !ok {
			e.Keys = append(e.Keys, key)
		}
		e.Values[key] = value
		return
	}
	prefix := key + "="
	for i, entry := range e.List {
		if strings.HasPrefix(entry, prefix) {
			e.List[i] = prefix + value
			return
		}
	}
	e.List = append(e.List, prefix+value)
}

// RewriteValues applies fn to every environment value, keeping keys and
// order intact. Used to rewrite service hostnames embedded in URLs.
func (e *EnvVars) RewriteValues(fn func(string) string) {
	if e == nil {
		return
	}
	if e.IsMap {
		for _, k := range e.Keys {
			e.Values[k] = fn(e.Values[k])
		}
		return
	}
	for i, entry := range e.List {
		key, val, found := strings.Cut(entry, "=")
		if !found {
			continue // pass-through entry, no value to rewrite
		}
		e.List[i] = key + "=" + fn(val)
	}
}

// DependsOn is the compose `depends_on` field: either a plain list of
// service names or a mapping from service name to a condition object.
type DependsOn struct {
	IsMap bool

	// List form.
	List []string

	// Mapping form; Keys preserves insertion order.
	Keys       []string
	Conditions map[string]map[string]any
}

func (dep *DependsOn) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		dep.IsMap = false
		dep.Keys, dep.Conditions = nil, nil
		return value.Decode(&dep.List)
	case yaml.MappingNode:
		dep.IsMap = true
		dep.List = nil
		dep.Keys = nil
		dep.Conditions = make(map[string]map[string]any, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			name := value.Content[i].Value
			var cond map[string]any
			if err := value.Content[i+1].Decode(&cond); err != nil {
				return fmt.Errorf("depends_on condition for %s: %w", name, err)
			}
			dep.Keys = append(dep.Keys, name)
			dep.Conditions[name] = cond
		}
		return nil
	default:
		return fmt.Errorf("depends_on: unsupported YAML node kind %d", value.Kind)
	}
}

func (dep DependsOn) MarshalYAML() (any, error) {
	if !dep.IsMap {
		return dep.List, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range dep.Keys {
		var cond yaml.Node
		if err := cond.Encode(dep.Conditions[k]); err != nil {
			return nil, fmt.Errorf("encode depends_on condition for %s: %w", k, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&cond,
		)
	}
	return node, nil
}

// Names returns the referenced service names in document order.
func (dep *DependsOn) Names() []string {
	if dep == nil {
		return nil
	}
	if dep.IsMap {
		out := make([]string, len(dep.Keys))
		copy(out, dep.Keys)
		return out
	}
	out := make([]string, len(dep.List))
	copy(out, dep.List)
	return out
}

// Rename rewrites every reference to oldName into newName.
func (dep *DependsOn) Rename(oldName, newName string) {
	if dep == nil {
		return
	}
	if dep.IsMap {
		for i, k := range dep.Keys {
			if k == oldName {
				dep.Keys[i] = newName
				dep.Conditions[newName] = dep.Conditions[oldName]
				delete(dep.Conditions, oldName)
			}
		}
		return
	}
	for i, name := range dep.List {
		if name == oldName {
			dep.List[i] = newName
		}
	}
}
