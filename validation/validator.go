package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-lynx/widget/plugins"
)

// Options tunes the advisory checks
type Options struct {
	// MaxDefaultConfigBytes flags default configs whose JSON form is larger
	MaxDefaultConfigBytes int `json:"max_default_config_bytes" yaml:"max_default_config_bytes"`
	// MaxDescriptionLength flags long descriptions
	MaxDescriptionLength int `json:"max_description_length" yaml:"max_description_length"`
	// InjectionKeywords are matched case-insensitively against descriptions
	InjectionKeywords []string `json:"injection_keywords" yaml:"injection_keywords"`
	// RiskyPermissions maps capability tokens to the severity they are reported with
	RiskyPermissions map[string]Severity `json:"risky_permissions" yaml:"risky_permissions"`
}

// DefaultOptions returns the thresholds used when none are configured
func DefaultOptions() Options {
	return Options{
		MaxDefaultConfigBytes: 10 * 1024,
		MaxDescriptionLength:  500,
		InjectionKeywords: []string{
			"eval(", "exec(", "function(", "settimeout(", "setinterval(",
			"<script", "javascript:", "document.cookie", "rm -rf", "drop table",
		},
		RiskyPermissions: map[string]Severity{
			"filesystem": SeverityHigh,
			"network":    SeverityMedium,
		},
	}
}

// Validator runs the structural, security and performance checks
type Validator struct {
	opts Options
}

// New creates a Validator. Zero thresholds fall back to DefaultOptions.
func New(opts Options) *Validator {
	def := DefaultOptions()
	if opts.MaxDefaultConfigBytes <= 0 {
		opts.MaxDefaultConfigBytes = def.MaxDefaultConfigBytes
	}
	if opts.MaxDescriptionLength <= 0 {
		opts.MaxDescriptionLength = def.MaxDescriptionLength
	}
	if opts.InjectionKeywords == nil {
		opts.InjectionKeywords = def.InjectionKeywords
	}
	if opts.RiskyPermissions == nil {
		opts.RiskyPermissions = def.RiskyPermissions
	}
	return &Validator{opts: opts}
}

// Validate runs every check and returns the combined report
func (v *Validator) Validate(m *plugins.Manifest) *Report {
	r := &Report{Structure: v.ValidateStructure(m)}
	if m == nil {
		return r
	}
	r.PluginID = m.ID
	r.Security = v.CheckSecurity(m)
	r.Performance = v.CheckPerformance(m)
	return r
}

// ValidateStructure runs the admission-blocking checks
func (v *Validator) ValidateStructure(m *plugins.Manifest) *Result {
	res := newResult()
	if m == nil {
		res.AddError("manifest", nil, "is nil")
		return res
	}

	if m.ID == "" {
		res.AddError("id", m.ID, "is required")
	} else if err := plugins.ValidatePluginID(m.ID); err != nil {
		res.AddError("id", m.ID, "may only contain letters, digits, '_' and '-'")
	}
	if strings.TrimSpace(m.Name) == "" {
		res.AddError("name", m.Name, "is required")
	}
	if m.Version == "" {
		res.AddError("version", m.Version, "is required")
	} else if !plugins.IsSemver(m.Version) {
		res.AddError("version", m.Version, "must be a semantic version (MAJOR.MINOR.PATCH)")
	}
	if strings.TrimSpace(m.Category) == "" {
		res.AddError("category", m.Category, "is required")
	}
	if strings.TrimSpace(m.Description) == "" {
		res.AddWarning("description", m.Description, "is empty")
	}
	for i, tag := range m.Tags {
		if strings.TrimSpace(tag) == "" {
			res.AddWarning(fmt.Sprintf("tags[%d]", i), tag, "is empty")
		}
	}

	if m.Component == nil {
		res.AddError("component", nil, "a renderable component is required")
	}
	if m.ConfigSchema == nil {
		res.AddError("configSchema", nil, "is required")
	} else if err := validateDefaults(m); err != nil {
		res.AddError("defaultConfig", m.DefaultConfig, err.Error())
	}

	for _, name := range sortedKeys(m.Settings) {
		if _, ok := m.Settings[name].(bool); !ok {
			res.AddError("settings."+name, m.Settings[name], "must be a boolean flag")
			continue
		}
		if !isKnownSetting(name) {
			res.AddWarning("settings."+name, m.Settings[name], "is not a known setting")
		}
	}

	hooks := make([]string, 0, len(m.Lifecycle))
	for name := range m.Lifecycle {
		hooks = append(hooks, name)
	}
	sort.Strings(hooks)
	for _, name := range hooks {
		switch {
		case !plugins.IsKnownHook(name):
			res.AddWarning("lifecycle."+name, nil, "is not a known lifecycle hook and will never be called")
		case m.Lifecycle[name] == nil:
			res.AddWarning("lifecycle."+name, nil, "is declared without an implementation")
		}
	}
	return res
}

// validateDefaults runs the plugin's schema on its own defaults. Schema code is
// plugin-supplied, so a panic counts as a rejection.
func validateDefaults(m *plugins.Manifest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schema panicked: %v", r)
		}
	}()
	return m.ConfigSchema.Validate(m.DefaultConfig.Clone())
}

// CheckSecurity builds the advisory risk list
func (v *Validator) CheckSecurity(m *plugins.Manifest) SecurityReport {
	var rep SecurityReport
	for _, p := range m.Permissions {
		if sev, ok := v.opts.RiskyPermissions[strings.ToLower(p)]; ok {
			rep.Risks = append(rep.Risks, Risk{
				Code:     "permission." + strings.ToLower(p),
				Message:  fmt.Sprintf("requests %q capability", p),
				Severity: sev,
			})
		}
	}
	desc := strings.ToLower(m.Description)
	for _, kw := range v.opts.InjectionKeywords {
		if strings.Contains(desc, strings.ToLower(kw)) {
			rep.Risks = append(rep.Risks, Risk{
				Code:     "description.injection",
				Message:  fmt.Sprintf("description contains %q", kw),
				Severity: SeverityHigh,
			})
		}
	}
	if !plugins.IsStandardVersion(m.Version) {
		rep.Risks = append(rep.Risks, Risk{
			Code:     "version.nonstandard",
			Message:  fmt.Sprintf("version %q is not a plain release version", m.Version),
			Severity: SeverityLow,
		})
	}
	return rep
}

// CheckPerformance scores the manifest and suggests improvements
func (v *Validator) CheckPerformance(m *plugins.Manifest) PerformanceReport {
	rep := PerformanceReport{Score: 100}
	if b, err := json.Marshal(m.DefaultConfig); err == nil && len(b) > v.opts.MaxDefaultConfigBytes {
		rep.Score -= 20
		rep.Suggestions = append(rep.Suggestions,
			fmt.Sprintf("default configuration is %d bytes; keep it under %d", len(b), v.opts.MaxDefaultConfigBytes))
	}
	if len(m.Description) > v.opts.MaxDescriptionLength {
		rep.Score -= 10
		rep.Suggestions = append(rep.Suggestions,
			fmt.Sprintf("description is %d characters; keep it under %d", len(m.Description), v.opts.MaxDescriptionLength))
	}
	if m.DataProviderFactory != nil {
		rep.Score -= 5
		rep.Suggestions = append(rep.Suggestions, "cache data provider results to avoid refetching on every refresh")
	}
	if rep.Score < 0 {
		rep.Score = 0
	}
	return rep
}

func isKnownSetting(name string) bool {
	for _, s := range plugins.KnownSettings {
		if s == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
