package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"prism/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Templates holds every narrative string the engine emits. {asset} and
// {action} are substituted in Summary.
type Templates struct {
	Summary     string        `yaml:"summary"`
	Assumptions []string      `yaml:"assumptions"`
	Risks       []string      `yaml:"risks"`
	NeutralBias string        `yaml:"neutral_bias"`
	RecencyBias string        `yaml:"recency_bias"`
	Scenarios   ScenarioTexts `yaml:"scenarios"`
	Guidance    GuidanceTexts `yaml:"guidance"`
	Prompt      string        `yaml:"prompt"`
}

type ScenarioTexts struct {
	Bull string `yaml:"bull"`
	Base string `yaml:"base"`
	Bear string `yaml:"bear"`
}

type GuidanceTexts struct {
	Clear  string `yaml:"clear"`
	Biased string `yaml:"biased"`
}

// DefaultTemplates returns the built-in narrative set.
func DefaultTemplates() Templates {
	return Templates{
		Summary:     "Analyzing {action} decision for {asset}.",
		Assumptions: []string{"Market trend will persist", "Liquidity remains stable"},
		Risks: []string{
			"Volatility expansion invalidates short-term stops.",
			"Macro headwinds not accounted for.",
		},
		NeutralBias: "Neutral behavioral state detected.",
		RecencyBias: "Recency Bias / Overtrading suspected in this asset.",
		Scenarios: ScenarioTexts{
			Bull: "Continuation to target. Trigger: Break of nearest resistance.",
			Base: "Range-bound consolidation.",
			Bear: "Invalidation of support levels. Liquidation risk.",
		},
		Guidance: GuidanceTexts{
			Clear:  "Verify volume confirmation before increasing exposure.",
			Biased: "Symmetry of reasoning is low. HIGH RISK DETECTED.",
		},
		Prompt: "What is the one macro event that makes this entire setup irrelevant?",
	}
}

// mergeOver fills every empty field of t from base.
func (t Templates) mergeOver(base Templates) Templates {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	out := Templates{
		Summary:     pick(t.Summary, base.Summary),
		NeutralBias: pick(t.NeutralBias, base.NeutralBias),
		RecencyBias: pick(t.RecencyBias, base.RecencyBias),
		Prompt:      pick(t.Prompt, base.Prompt),
		Scenarios: ScenarioTexts{
			Bull: pick(t.Scenarios.Bull, base.Scenarios.Bull),
			Base: pick(t.Scenarios.Base, base.Scenarios.Base),
			Bear: pick(t.Scenarios.Bear, base.Scenarios.Bear),
		},
		Guidance: GuidanceTexts{
			Clear:  pick(t.Guidance.Clear, base.Guidance.Clear),
			Biased: pick(t.Guidance.Biased, base.Guidance.Biased),
		},
		Assumptions: append([]string(nil), base.Assumptions...),
		Risks:       append([]string(nil), base.Risks...),
	}
	if len(t.Assumptions) > 0 {
		out.Assumptions = append([]string(nil), t.Assumptions...)
	}
	if len(t.Risks) > 0 {
		out.Risks = append([]string(nil), t.Risks...)
	}
	return out
}

func (t Templates) clone() Templates {
	return t.mergeOver(Templates{})
}

// Snapshot is an immutable view of the registry at one version.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Source    string
	Templates Templates
}

// TemplateSource supplies the templates for one engine call.
type TemplateSource interface {
	Snapshot() Snapshot
}

type staticSource struct{ snap Snapshot }

func (s staticSource) Snapshot() Snapshot { return s.snap }

// StaticTemplates wraps a fixed template set.
func StaticTemplates(t Templates) TemplateSource {
	return staticSource{snap: Snapshot{Version: 1, Source: "static", Templates: t.mergeOver(DefaultTemplates())}}
}

type templateFile struct {
	Templates Templates `yaml:"analysis_templates"`
}

const templateSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["analysis_templates"],
  "properties": {
    "analysis_templates": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "summary": {"type": "string", "minLength": 1},
        "assumptions": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "risks": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "neutral_bias": {"type": "string", "minLength": 1},
        "recency_bias": {"type": "string", "minLength": 1},
        "prompt": {"type": "string", "minLength": 1},
        "scenarios": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "bull": {"type": "string", "minLength": 1},
            "base": {"type": "string", "minLength": 1},
            "bear": {"type": "string", "minLength": 1}
          }
        },
        "guidance": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "clear": {"type": "string", "minLength": 1},
            "biased": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

// Registry serves narrative templates from a YAML file and reloads it on
// change. A reload that fails validation keeps the previous snapshot.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry loads path and watches it. An empty path serves the defaults.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path: strings.TrimSpace(path),
		snapshot: Snapshot{
			Version:   1,
			LoadedAt:  time.Now(),
			Source:    "builtin",
			Templates: DefaultTemplates(),
		},
	}
	if r.path == "" {
		return r, nil
	}
	schema, err := compileTemplateSchema()
	if err != nil {
		return nil, err
	}
	r.schema = schema
	if err := r.reload(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read analysis templates failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("analysis template reload failed, keeping v%d: %v", r.Snapshot().Version, err)
		}
	})
	v.WatchConfig()
	r.v = v
	return r, nil
}

// Snapshot returns a copy of the current templates.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := r.snapshot
	snap.Templates = snap.Templates.clone()
	return snap
}

func (r *Registry) reload() error {
	tpl, err := readTemplateFile(r.path, r.schema)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Source:    r.path,
		Templates: tpl.mergeOver(DefaultTemplates()),
	}
	version := r.snapshot.Version
	r.mu.Unlock()
	logger.Infof("analysis templates v%d loaded from %s", version, filepath.Base(r.path))
	return nil
}

func compileTemplateSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis_templates.json", strings.NewReader(templateSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("analysis_templates.json")
}

func readTemplateFile(path string, schema *jsonschema.Schema) (Templates, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Templates{}, fmt.Errorf("read analysis templates failed: %w", err)
	}
	if schema != nil {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Templates{}, fmt.Errorf("parse analysis templates failed: %w", err)
		}
		asJSON, err := json.Marshal(doc)
		if err != nil {
			return Templates{}, fmt.Errorf("parse analysis templates failed: %w", err)
		}
		var inst any
		if err := json.Unmarshal(asJSON, &inst); err != nil {
			return Templates{}, fmt.Errorf("parse analysis templates failed: %w", err)
		}
		if err := schema.Validate(inst); err != nil {
			return Templates{}, fmt.Errorf("analysis templates invalid: %w", err)
		}
	}
	var file templateFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return Templates{}, fmt.Errorf("parse analysis templates failed: %w", err)
	}
	return file.Templates, nil
}
