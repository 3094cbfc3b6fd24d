package chunker

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig holds the node kinds that represent top-level semantic
// units for one language's tree-sitter grammar.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string

	// NameField is the field name tree-sitter exposes for a declaration's
	// identifier, used to recover a human-readable symbol name.
	NameField string
}

// symbolTypes returns the union of all node kinds this language treats as a
// top-level semantic unit worth chunking.
func (c *LanguageConfig) symbolTypes() map[string]struct{} {
	set := make(map[string]struct{})
	for _, group := range [][]string{c.FunctionTypes, c.ClassTypes, c.InterfaceTypes, c.MethodTypes, c.TypeDefTypes} {
		for _, t := range group {
			set[t] = struct{}{}
		}
	}
	return set
}

// LanguageRegistry maps file extensions and language tags to tree-sitter
// grammars and their semantic-unit node kinds.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds a registry pre-populated with the languages
// this server ships tree-sitter grammars for.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.register(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeDefTypes:  []string{"type_declaration"},
		NameField:     "name",
	}, golang.GetLanguage())

	ts := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{"type_alias_declaration"},
		NameField:      "name",
	}
	r.register(ts, typescript.GetLanguage())
	r.register(&LanguageConfig{
		Name: "tsx", Extensions: []string{".tsx"},
		FunctionTypes: ts.FunctionTypes, MethodTypes: ts.MethodTypes,
		ClassTypes: ts.ClassTypes, InterfaceTypes: ts.InterfaceTypes,
		TypeDefTypes: ts.TypeDefTypes, NameField: ts.NameField,
	}, tsx.GetLanguage())

	js := &LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		NameField:     "name",
	}
	r.register(js, javascript.GetLanguage())
	r.register(&LanguageConfig{
		Name: "jsx", Extensions: []string{".jsx"},
		FunctionTypes: js.FunctionTypes, MethodTypes: js.MethodTypes,
		ClassTypes: js.ClassTypes, NameField: js.NameField,
	}, javascript.GetLanguage())

	r.register(&LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		NameField:     "name",
	}, python.GetLanguage())

	return r
}

func (r *LanguageRegistry) register(cfg *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = lang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// ByExtension returns the language name registered for ext (normalized with
// a leading dot, case-insensitive), or "" if unsupported.
func (r *LanguageRegistry) ByExtension(ext string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return r.extToLang[ext]
}

// Config returns the LanguageConfig for a language name.
func (r *LanguageRegistry) Config(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.configs[name]
	return c, ok
}

// TreeSitterLanguage returns the tree-sitter grammar for a language name.
func (r *LanguageRegistry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.tsLanguages[name]
	return l, ok
}

// SupportedExtensions lists every registered extension.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry { return defaultRegistry }
