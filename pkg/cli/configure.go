package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/parrotstack/parrot/pkg/compose"
	"github.com/parrotstack/parrot/pkg/config"
	"github.com/parrotstack/parrot/pkg/infra/auth"
	"github.com/parrotstack/parrot/pkg/infra/logger"
	"github.com/parrotstack/parrot/pkg/pipeline"
	"github.com/parrotstack/parrot/templates"
)

// dockerSocketPath is where the engine socket lives on Linux hosts; its
// group id is handed to containers that need engine access.
const dockerSocketPath = "/var/run/docker.sock"

type configureFlags struct {
	pipelineType      string
	domain            string
	port              int
	externalPort      int
	httpsPort         int
	externalHTTPSPort int
	theme             string
	hfToken           string
	debug             bool

	backends string
	sttFlags roleFlags
	mtFlags  roleFlags
	ttsFlags roleFlags
	llmFlags roleFlags

	summarizerURL    string
	structOnlineURL  string
	structOfflineURL string
	slidesURL        string

	https              bool
	acmeEmail          string
	acmeStaging        bool
	forceHTTPSRedirect bool

	adminPassword string
	overwrite     bool
}

type roleFlags struct {
	engine string
	model  string
	gpu    string
	url    string
}

func (f *roleFlags) register(cmd *cobra.Command, role string) {
	cmd.Flags().StringVar(&f.engine, role+"-engine", "", "Backend engine for the "+role+" role")
	cmd.Flags().StringVar(&f.model, role+"-model", "", "Model for the "+role+" backend")
	cmd.Flags().StringVar(&f.gpu, role+"-gpu", "", "GPU device id for the "+role+" backend")
	cmd.Flags().StringVar(&f.url, role+"-url", "", "External URL for the "+role+" backend")
}

func (f roleFlags) spec() config.BackendSpec {
	return config.BackendSpec{Engine: f.engine, Model: f.model, GPU: f.gpu, URL: f.url}
}

func (f roleFlags) empty() bool {
	return f.engine == "" && f.model == "" && f.gpu == "" && f.url == ""
}

// NewConfigureCommand creates the configure command: it persists the
// pipeline spec and generates the deployment artifacts into the
// configuration directory.
func NewConfigureCommand(root *RootCommand) *cobra.Command {
	flags := &configureFlags{}

	cmd := &cobra.Command{
		Use:   "configure NAME",
		Short: "Create a pipeline configuration and generate its deployment files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(root, args[0], flags)
		},
	}

	cfg := config.Default()
	cmd.Flags().StringVar(&flags.pipelineType, "type", "end2end",
		"Pipeline type ("+strings.Join(pipeline.Types(), ", ")+")")
	cmd.Flags().StringVar(&flags.domain, "domain", cfg.Defaults.Domain, "Domain for the pipeline")
	cmd.Flags().IntVar(&flags.port, "port", cfg.Defaults.HTTPPort, "Internal port the proxy listens on")
	cmd.Flags().IntVar(&flags.externalPort, "external-port", 0, "Externally reachable port (defaults to --port)")
	cmd.Flags().IntVar(&flags.httpsPort, "https-port", 8443, "Internal HTTPS port")
	cmd.Flags().IntVar(&flags.externalHTTPSPort, "external-https-port", 0, "Externally reachable HTTPS port (defaults to --https-port)")
	cmd.Flags().StringVar(&flags.theme, "website-theme", cfg.Defaults.Theme, "Website theme")
	cmd.Flags().StringVar(&flags.hfToken, "hf-token", "", "Hugging Face token for model downloads")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug mode in the deployed stack")

	cmd.Flags().StringVar(&flags.backends, "backends", "local", "Backend mode (local, distributed, external)")
	flags.sttFlags.register(cmd, "stt")
	flags.mtFlags.register(cmd, "mt")
	flags.ttsFlags.register(cmd, "tts")
	flags.llmFlags.register(cmd, "llm")
	cmd.Flags().StringVar(&flags.summarizerURL, "summarizer-url", "", "URL of the summarizer backend")
	cmd.Flags().StringVar(&flags.structOnlineURL, "text-structurer-online-url", "", "URL of the online text structurer")
	cmd.Flags().StringVar(&flags.structOfflineURL, "text-structurer-offline-url", "", "URL of the offline text structurer")
	cmd.Flags().StringVar(&flags.slidesURL, "slide-translator-url", "", "URL of the slide translator")

	cmd.Flags().BoolVar(&flags.https, "https", false, "Enable HTTPS with automatic certificates")
	cmd.Flags().StringVar(&flags.acmeEmail, "acme-email", "", "Email for ACME certificate registration")
	cmd.Flags().BoolVar(&flags.acmeStaging, "acme-staging", false, "Use the ACME staging endpoint")
	cmd.Flags().BoolVar(&flags.forceHTTPSRedirect, "force-https-redirect", false, "Redirect HTTP requests to HTTPS")

	cmd.Flags().StringVar(&flags.adminPassword, "admin-password", "", "Admin password for proxy auth and the identity provider")
	cmd.Flags().BoolVarP(&flags.overwrite, "overwrite", "y", false, "Overwrite an existing configuration")

	return cmd
}

func runConfigure(root *RootCommand, name string, flags *configureFlags) error {
	cfg := root.Config()
	configDir := cfg.General.ConfigDir

	if _, err := os.Stat(config.SpecPath(configDir, name)); err == nil && !flags.overwrite {
		return fmt.Errorf("configuration %q already exists, pass --overwrite to replace it", name)
	}

	spec := specFromFlags(name, flags)
	if err := config.SaveSpec(configDir, spec); err != nil {
		return err
	}
	outDir := config.ConfigurationDir(configDir, name)
	logger.Info("saved pipeline configuration",
		"name", name, "type", spec.Type, "path", config.SpecPath(configDir, name))

	// Artifact generation is best effort: a missing backend file or
	// template must not lose the saved spec.
	var warnings int
	warn := func(what string, err error) {
		warnings++
		logger.Warn("could not generate "+what, "error", err)
	}

	mgr := newComposeManager(cfg)

	doc, err := mgr.GenerateCompose(spec.Type, renderContext(spec), spec.Backends, backendSelections(spec))
	if err != nil {
		warn("docker-compose file", err)
	} else if err := doc.Save(filepath.Join(outDir, "docker-compose.yaml")); err != nil {
		warn("docker-compose file", err)
	}

	if err := mgr.GenerateEnvFile(outDir, envParams(cfg, spec)); err != nil {
		warn(".env file", err)
	}

	if flags.adminPassword != "" {
		hash, err := auth.HashPassword(flags.adminPassword)
		if err != nil {
			warn("credentials", err)
		} else {
			if err := mgr.GenerateProxyFiles(name, hash, outDir); err != nil {
				warn("proxy files", err)
			}
			if err := mgr.GenerateProxyRules(outDir); err != nil {
				warn("proxy rules", err)
			}
			if err := mgr.GenerateIdPConfig(outDir); err != nil {
				warn("identity provider config", err)
			}
			if err := auth.WriteIdPEnv(outDir, hash); err != nil {
				warn("identity provider env", err)
			}
		}
	} else {
		logger.Info("no admin password given, skipping proxy and identity provider files")
	}

	if warnings > 0 {
		PrintSuccess(fmt.Sprintf("Configuration %q saved with %d warning(s), see log output", name, warnings), root.OutputOptions())
	} else {
		PrintSuccess(fmt.Sprintf("Configuration %q saved to %s", name, outDir), root.OutputOptions())
	}
	return nil
}

func specFromFlags(name string, flags *configureFlags) *config.PipelineSpec {
	spec := &config.PipelineSpec{
		Name:              name,
		Type:              flags.pipelineType,
		Domain:            flags.domain,
		HTTPPort:          flags.port,
		ExternalPort:      flags.externalPort,
		HTTPSPort:         flags.httpsPort,
		ExternalHTTPSPort: flags.externalHTTPSPort,
		Theme:             flags.theme,
		HFToken:           flags.hfToken,
		Debug:             flags.debug,
		Backends:          flags.backends,
		Roles:             map[pipeline.Role]config.BackendSpec{},

		HTTPS:              flags.https,
		ACMEEmail:          flags.acmeEmail,
		ACMEStaging:        flags.acmeStaging,
		ForceHTTPSRedirect: flags.forceHTTPSRedirect,
	}

	roleInputs := map[pipeline.Role]roleFlags{
		pipeline.RoleSTT: flags.sttFlags,
		pipeline.RoleMT:  flags.mtFlags,
		pipeline.RoleTTS: flags.ttsFlags,
		pipeline.RoleLLM: flags.llmFlags,

		pipeline.RoleSummarizer:            {url: flags.summarizerURL},
		pipeline.RoleTextStructurerOnline:  {url: flags.structOnlineURL},
		pipeline.RoleTextStructurerOffline: {url: flags.structOfflineURL},
		pipeline.RoleSlideTranslator:       {url: flags.slidesURL},
	}
	for role, rf := range roleInputs {
		if !rf.empty() {
			spec.Roles[role] = rf.spec()
		}
	}

	return spec
}

func newComposeManager(cfg *config.Config) *compose.Manager {
	if dir := cfg.General.TemplateDir; dir != "" {
		return compose.NewManager(
			os.DirFS(filepath.Join(dir, "docker")),
			os.DirFS(filepath.Join(dir, "traefik")),
			os.DirFS(filepath.Join(dir, "dex")),
			cfg.BackendsDir(),
		)
	}
	return compose.NewManager(templates.Docker(), templates.Traefik(), templates.Dex(), cfg.BackendsDir())
}

func renderContext(spec *config.PipelineSpec) compose.RenderContext {
	return compose.RenderContext{
		LocalhostDomain:    spec.LocalhostDomain(),
		Debug:              spec.Debug,
		HTTPS:              spec.HTTPS,
		ACMEStaging:        spec.ACMEStaging,
		ForceHTTPSRedirect: spec.ForceHTTPSRedirect,
		Domain:             spec.Domain,
		ACMEEmail:          spec.ACMEEmail,
	}
}

func backendSelections(spec *config.PipelineSpec) map[pipeline.Role]compose.BackendSelection {
	selections := make(map[pipeline.Role]compose.BackendSelection, len(spec.Roles))
	for role, b := range spec.Roles {
		selections[role] = compose.BackendSelection{
			Engine: b.Engine,
			Model:  b.Model,
			GPU:    b.GPU,
			URL:    b.URL,
		}
	}
	return selections
}

func envParams(cfg *config.Config, spec *config.PipelineSpec) compose.EnvParams {
	return compose.EnvParams{
		PipelineType: spec.Type,
		PipelineName: spec.Name,
		Domain:       spec.Domain,
		Theme:        spec.Theme,

		HTTPPort:          spec.HTTPPort,
		ExternalPort:      spec.ExternalPort,
		HTTPSPort:         spec.HTTPSPort,
		ExternalHTTPSPort: spec.ExternalHTTPSPort,

		Debug:              spec.Debug,
		EnableHTTPS:        spec.HTTPS,
		ACMEEmail:          spec.ACMEEmail,
		ACMEStaging:        spec.ACMEStaging,
		ForceHTTPSRedirect: spec.ForceHTTPSRedirect,

		HFToken: spec.HFToken,

		BackendsMode: spec.Backends,
		Backends:     backendSelections(spec),

		ComponentsDir: cfg.ComponentsDir(),
		BackendsDir:   cfg.BackendsDir(),

		HostUID:   os.Getuid(),
		HostGID:   os.Getgid(),
		DockerGID: dockerSocketGID(),
	}
}

// dockerSocketGID returns the group id owning the docker socket, so
// containers mounting it can be granted matching group membership.
// Returns 0 when the socket is absent.
func dockerSocketGID() int {
	var st unix.Stat_t
	if err := unix.Stat(dockerSocketPath, &st); err != nil {
		return 0
	}
	return int(st.Gid)
}
