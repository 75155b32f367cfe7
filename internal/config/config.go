package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Defaults mirror the original project layout: the three subdirectories
// holding shared utilities, solver routines, and ground-truth
// initialization data, and the two-test catalog run against them.
var (
	DefaultSearchPaths = []string{"utilities", "solver", "Initialization_groundtruth"}
	DefaultCatalog     = []Test{
		{Name: "diagnostic", Routine: "diagnostic_test"},
		{Name: "simple algorithm", Routine: "simple_test"},
	}
)

const (
	defaultEngineURL     = "http://127.0.0.1:9515"
	defaultNamespace     = "/engine"
	defaultStartTimeout  = 90 * time.Second
	defaultInvokeTimeout = 0 // block until the routine finishes
)

// Test identifies one catalog entry: a display name and the engine-side
// routine invoked for it.
type Test struct {
	Name    string
	Routine string
}

// EngineSettings holds everything needed to launch and reach the engine's
// bridge endpoint. An empty Command means attach to a running bridge.
type EngineSettings struct {
	Command       string
	Args          []string
	URL           string
	Namespace     string
	StartTimeout  time.Duration
	InvokeTimeout time.Duration
}

// Model is the fully resolved harness configuration, immutable for the
// duration of a run.
type Model struct {
	ProjectDir  string
	SearchPaths []string
	Engine      EngineSettings
	Catalog     []Test
}

// fileRoot is the first decoding pass: it pins down project_dir so the
// remainder of the file can reference it as a variable.
type fileRoot struct {
	ProjectDir string   `hcl:"project_dir,optional"`
	Remain     hcl.Body `hcl:",remain"`
}

// fileRest is the second decoding pass over everything else.
type fileRest struct {
	SearchPaths []string     `hcl:"search_paths,optional"`
	Engine      *engineBlock `hcl:"engine,block"`
	Tests       []testBlock  `hcl:"test,block"`
}

type engineBlock struct {
	Command       string   `hcl:"command,optional"`
	Args          []string `hcl:"args,optional"`
	URL           string   `hcl:"url,optional"`
	Namespace     string   `hcl:"namespace,optional"`
	StartTimeout  string   `hcl:"start_timeout,optional"`
	InvokeTimeout string   `hcl:"invoke_timeout,optional"`
}

type testBlock struct {
	Name    string `hcl:"name,label"`
	Routine string `hcl:"routine"`
}

// Load reads the harness file at path and resolves it into a Model. An
// empty path yields a Model built purely from defaults and the override.
// projectDirOverride, when non-empty, wins over the file's project_dir and
// is what the file's expressions see as the project_dir variable.
func Load(path string, projectDirOverride string) (*Model, error) {
	model := &Model{
		ProjectDir:  projectDirOverride,
		SearchPaths: DefaultSearchPaths,
		Engine: EngineSettings{
			URL:           defaultEngineURL,
			Namespace:     defaultNamespace,
			StartTimeout:  defaultStartTimeout,
			InvokeTimeout: defaultInvokeTimeout,
		},
		Catalog: DefaultCatalog,
	}

	if path != "" {
		if err := decodeFile(path, projectDirOverride, model); err != nil {
			return nil, err
		}
	}

	if err := model.validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// decodeFile merges the HCL file at path into model.
func decodeFile(path string, projectDirOverride string, model *Model) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	if projectDirOverride == "" {
		model.ProjectDir = root.ProjectDir
	}

	// Later attributes may interpolate the resolved project directory,
	// e.g. args = ["-batch", "mltest_bridge('${project_dir}')"].
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project_dir": cty.StringVal(model.ProjectDir),
		},
	}

	var rest fileRest
	if diags := gohcl.DecodeBody(root.Remain, evalCtx, &rest); diags.HasErrors() {
		return fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	if rest.SearchPaths != nil {
		model.SearchPaths = rest.SearchPaths
	}
	if len(rest.Tests) > 0 {
		catalog := make([]Test, 0, len(rest.Tests))
		for _, t := range rest.Tests {
			catalog = append(catalog, Test{Name: t.Name, Routine: t.Routine})
		}
		model.Catalog = catalog
	}
	if rest.Engine != nil {
		if err := mergeEngine(rest.Engine, &model.Engine); err != nil {
			return fmt.Errorf("invalid engine block in %s: %w", path, err)
		}
	}
	return nil
}

// mergeEngine overlays the file's engine block onto the defaults.
func mergeEngine(block *engineBlock, settings *EngineSettings) error {
	settings.Command = block.Command
	settings.Args = block.Args
	if block.URL != "" {
		settings.URL = block.URL
	}
	if block.Namespace != "" {
		settings.Namespace = block.Namespace
	}
	if block.StartTimeout != "" {
		d, err := time.ParseDuration(block.StartTimeout)
		if err != nil {
			return fmt.Errorf("start_timeout: %w", err)
		}
		settings.StartTimeout = d
	}
	if block.InvokeTimeout != "" {
		d, err := time.ParseDuration(block.InvokeTimeout)
		if err != nil {
			return fmt.Errorf("invoke_timeout: %w", err)
		}
		settings.InvokeTimeout = d
	}
	return nil
}

// validate rejects models the orchestrator cannot act on.
func (m *Model) validate() error {
	if m.ProjectDir == "" {
		return fmt.Errorf("project directory is required: set project_dir in the harness file or pass -project-dir")
	}
	if len(m.Catalog) == 0 {
		return fmt.Errorf("test catalog is empty")
	}
	for _, t := range m.Catalog {
		if t.Routine == "" {
			return fmt.Errorf("test %q has no routine", t.Name)
		}
	}
	return nil
}
