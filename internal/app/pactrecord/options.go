package pactrecord

const defaultObfuscationPattern = "****"

// PreprocessorOptions control which key paths are removed or masked before a
// record is persisted or compared. Paths are resolved relative to a record,
// e.g. "request.headers.Authorization" or "response.body.password".
type PreprocessorOptions struct {
	Ignore             []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Obfuscate          []string `json:"obfuscate,omitempty" yaml:"obfuscate,omitempty"`
	ObfuscationPattern string   `json:"obfuscationPattern,omitempty" yaml:"obfuscationPattern,omitempty"`
	IgnoreCase         *bool    `json:"ignoreCase,omitempty" yaml:"ignoreCase,omitempty"`
}

func (o *PreprocessorOptions) ignoreCase() bool {
	if o == nil || o.IgnoreCase == nil {
		return true
	}
	return *o.IgnoreCase
}

func (o *PreprocessorOptions) pattern() string {
	if o == nil || o.ObfuscationPattern == "" {
		return defaultObfuscationPattern
	}
	return o.ObfuscationPattern
}

// MergePreprocessorOptions combines partial option sources in priority order,
// later sources overriding earlier ones field by field. Nil sources are
// skipped; unset fields fall through to the previous source. Built-in
// defaults (pattern "****", case-insensitive) apply when no source sets a
// field.
func MergePreprocessorOptions(sources ...*PreprocessorOptions) *PreprocessorOptions {
	merged := &PreprocessorOptions{}
	for _, src := range sources {
		if src == nil {
			continue
		}
		if src.Ignore != nil {
			merged.Ignore = append([]string(nil), src.Ignore...)
		}
		if src.Obfuscate != nil {
			merged.Obfuscate = append([]string(nil), src.Obfuscate...)
		}
		if src.ObfuscationPattern != "" {
			merged.ObfuscationPattern = src.ObfuscationPattern
		}
		if src.IgnoreCase != nil {
			value := *src.IgnoreCase
			merged.IgnoreCase = &value
		}
	}
	return merged
}
