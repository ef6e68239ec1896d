package rules

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

type presetFile struct {
	Firms []presetFirm `yaml:"firms"`
}

type presetFirm struct {
	Firm           string                 `yaml:"firm"`
	Aliases        []string               `yaml:"aliases"`
	DefaultProgram string                 `yaml:"default_program"`
	Programs       map[string]presetEntry `yaml:"programs"`
	AliasesProgram map[string]string      `yaml:"aliases_program"`
}

type presetEntry struct {
	DisplayName string `yaml:"display_name"`
	Rules       Rules  `yaml:"rules"`
}

// firmPreset is one compiled firm entry in the registry: its taxonomy plus
// its programs, each already defaulted and validated.
type firmPreset struct {
	taxonomy Taxonomy
	programs map[string]Rules // program_id -> Rules
	dflt     string           // default program_id
}

// PresetRegistry is the compile-time map firm_name_normalized → Rules
// described by the resolver's preset tier. It is immutable after
// construction and safe to read from any number of goroutines without
// locking, matching the "registries assembled once in main" design.
type PresetRegistry struct {
	byFirm map[string]firmPreset // normalized firm name -> preset
	alias  map[string]string     // normalized alias -> normalized canonical firm name
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *PresetRegistry
	defaultRegistryErr  error
)

// DefaultPresetRegistry builds (once) and returns the registry compiled from
// the embedded presets.yaml. Subsequent calls return the cached instance.
func DefaultPresetRegistry() (*PresetRegistry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = NewPresetRegistry(presetsYAML)
	})
	return defaultRegistry, defaultRegistryErr
}

// NewPresetRegistry compiles a registry from raw YAML, the shape documented
// in presets.yaml. Exposed for tests that want to exercise a smaller or
// deliberately malformed preset set.
func NewPresetRegistry(raw []byte) (*PresetRegistry, error) {
	var file presetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("rules: parse presets: %w", err)
	}

	reg := &PresetRegistry{
		byFirm: make(map[string]firmPreset, len(file.Firms)),
		alias:  make(map[string]string),
	}

	for _, f := range file.Firms {
		key := NormalizeFirm(f.Firm)
		if key == "" {
			return nil, fmt.Errorf("rules: preset entry has empty firm name")
		}
		if _, exists := reg.byFirm[key]; exists {
			return nil, fmt.Errorf("rules: duplicate preset firm %q", f.Firm)
		}

		tax := Taxonomy{
			Firm:             f.Firm,
			OfficialPrograms: make(map[string]string, len(f.Programs)),
			Aliases:          f.AliasesProgram,
		}
		programs := make(map[string]Rules, len(f.Programs))
		for id, entry := range f.Programs {
			r := entry.Rules
			r.ProgramID = id
			if r.Name == "" {
				r.Name = fmt.Sprintf("%s %s", f.Firm, entry.DisplayName)
			}
			r = r.WithDefaults()
			if err := r.Validate(); err != nil {
				return nil, fmt.Errorf("rules: preset %s/%s: %w", f.Firm, id, err)
			}
			programs[id] = r
			tax.OfficialPrograms[id] = entry.DisplayName
		}
		if f.DefaultProgram != "" {
			if _, ok := programs[f.DefaultProgram]; !ok {
				return nil, fmt.Errorf("rules: preset %s: default_program %q not defined", f.Firm, f.DefaultProgram)
			}
		}

		reg.byFirm[key] = firmPreset{taxonomy: tax, programs: programs, dflt: f.DefaultProgram}
		for _, a := range f.Aliases {
			ak := NormalizeFirm(a)
			reg.alias[ak] = key
		}
	}

	return reg, nil
}

// Lookup finds the preset Rules for firm, preferring programID when it names
// a known program for that firm (after resolving one alias hop through the
// firm's program taxonomy). firm may itself be an alias. ok is false if the
// firm is not known to the registry at all.
func (p *PresetRegistry) Lookup(firm, programID string) (r Rules, ok bool) {
	if p == nil {
		return Rules{}, false
	}
	key := NormalizeFirm(firm)
	if canon, isAlias := p.alias[key]; isAlias {
		key = canon
	}
	entry, found := p.byFirm[key]
	if !found {
		return Rules{}, false
	}

	if programID != "" {
		canonicalID := entry.taxonomy.Canonicalize(programID)
		if r, ok := entry.programs[canonicalID]; ok {
			return r, true
		}
	}

	if entry.dflt != "" {
		if r, ok := entry.programs[entry.dflt]; ok {
			return r, true
		}
	}

	// No default_program declared and no program match: any single program
	// still counts as "the firm's preset" when there is exactly one.
	if len(entry.programs) == 1 {
		for _, r := range entry.programs {
			return r, true
		}
	}

	return Rules{}, false
}

// Taxonomy returns the program taxonomy for a known firm, for review-path
// callers that need to display canonical program names.
func (p *PresetRegistry) Taxonomy(firm string) (Taxonomy, bool) {
	if p == nil {
		return Taxonomy{}, false
	}
	key := NormalizeFirm(firm)
	if canon, isAlias := p.alias[key]; isAlias {
		key = canon
	}
	entry, found := p.byFirm[key]
	if !found {
		return Taxonomy{}, false
	}
	return entry.taxonomy, true
}
