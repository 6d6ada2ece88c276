// Package targetcfg implements the per-target configuration layer from
// spec.md §6: discovery across user-home, ancestor, and target directories,
// last-writer-wins merge at the key level, and the parameter precedence
// command-line > per-template > file-level > empty. Loading goes through
// spf13/viper (teacher go.mod, declared but unused by the teacher's visible
// code — wired here for the first time), the way pkg/synth/config.go wraps
// gopkg.in/yaml.v3 behind a single LoadConfig entry point with its own
// validation pass.
package targetcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the recognised config file basename at every discovery
// location (spec.md §6 doesn't name one explicitly; "forge.yaml" mirrors the
// teacher's own "motel.yaml"-style convention of naming the config after the
// tool).
const ConfigFileName = "forge.yaml"

// WhitespaceControl is the trim_blocks/lstrip_blocks/keep_trailing_newline
// policy a target configures (spec.md §6).
type WhitespaceControl struct {
	TrimBlocks          bool `mapstructure:"trim_blocks"`
	LstripBlocks        bool `mapstructure:"lstrip_blocks"`
	KeepTrailingNewline bool `mapstructure:"keep_trailing_newline"`
}

// TemplateSyntax is the delimiter override a target may configure
// (spec.md §6 `template_syntax`): block, variable and comment pairs. There
// are no raw-delimiter keys; raw delimiters always keep their defaults.
type TemplateSyntax struct {
	BlockStart    string `mapstructure:"block_start"`
	BlockEnd      string `mapstructure:"block_end"`
	VariableStart string `mapstructure:"variable_start"`
	VariableEnd   string `mapstructure:"variable_end"`
	CommentStart  string `mapstructure:"comment_start"`
	CommentEnd    string `mapstructure:"comment_end"`
}

// CommentFormat is one named entry of spec.md §6's `comment_formats` table.
type CommentFormat struct {
	Format                    string `mapstructure:"format"`
	Header                    string `mapstructure:"header"`
	Prefix                    string `mapstructure:"prefix"`
	Footer                    string `mapstructure:"footer"`
	IndentType                string `mapstructure:"indent_type"`
	Trim                      bool   `mapstructure:"trim"`
	RemoveTrailingDots        bool   `mapstructure:"remove_trailing_dots"`
	EnforceTrailingDots       bool   `mapstructure:"enforce_trailing_dots"`
	EscapeBackslashes         bool   `mapstructure:"escape_backslashes"`
	EscapeSquareBrackets      bool   `mapstructure:"escape_square_brackets"`
	ShortcutReferenceLinks    bool   `mapstructure:"shortcut_reference_links"`
	IndentFirstLevelListItems bool   `mapstructure:"indent_first_level_list_items"`
	DefaultBlockCodeLanguage  string `mapstructure:"default_block_code_language"`
	OldStyleParagraph         bool   `mapstructure:"old_style_paragraph"`
	OmitClosingLI             bool   `mapstructure:"omit_closing_li"`
	InlineCodeSnippet         string `mapstructure:"inline_code_snippet"`
	BlockCodeSnippet          string `mapstructure:"block_code_snippet"`
}

// TemplateBinding is one entry of spec.md §6's `templates` list. Template
// carries the normalised path/glob; Pattern is accepted and folded into
// Template at load time as the legacy alias spec.md names.
type TemplateBinding struct {
	Template        string         `mapstructure:"template"`
	Pattern         string         `mapstructure:"pattern"`
	Filter          string         `mapstructure:"filter"`
	ApplicationMode string         `mapstructure:"application_mode"`
	FileName        string         `mapstructure:"file_name"`
	Params          map[string]any `mapstructure:"params"`
}

// Config is the fully merged, normalised target configuration.
type Config struct {
	TextMaps             map[string]map[string]string `mapstructure:"text_maps"`
	TemplateSyntax       TemplateSyntax                `mapstructure:"template_syntax"`
	WhitespaceControl    WhitespaceControl              `mapstructure:"whitespace_control"`
	Acronyms             []string                       `mapstructure:"acronyms"`
	CommentFormats       map[string]CommentFormat       `mapstructure:"comment_formats"`
	DefaultCommentFormat string                         `mapstructure:"default_comment_format"`
	Params               map[string]any                 `mapstructure:"params"`
	Templates            []TemplateBinding              `mapstructure:"templates"`
}

// DiscoveryPaths computes spec.md §6's discovery order for targetDir:
// user-home config, then each ancestor directory from outermost to
// innermost, then the target directory itself. No existence check is made;
// Load skips any directory without a forge.yaml. Callers probing `explicit`
// (the "explicit list at the API boundary" that overrides discovery) should
// skip this entirely.
func DiscoveryPaths(targetDir string) ([]string, error) {
	var dirs []string

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}

	abs, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("resolving target directory %s: %w", targetDir, err)
	}

	var ancestors []string
	for dir := filepath.Dir(abs); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		ancestors = append(ancestors, dir)
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		dirs = append(dirs, ancestors[i])
	}

	dirs = append(dirs, abs)
	return dirs, nil
}

// Load discovers and merges every forge.yaml along paths (outermost first),
// last-writer-wins at the key level via viper's MergeInConfig. An explicit
// paths slice (rather than one computed by DiscoveryPaths) lets a caller
// override discovery per spec.md §6.
func Load(paths []string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(strings.TrimSuffix(ConfigFileName, filepath.Ext(ConfigFileName)))
	v.SetConfigType("yaml")

	found := false
	for _, dir := range paths {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		var mergeErr error
		if !found {
			mergeErr = v.ReadInConfig()
		} else {
			mergeErr = v.MergeInConfig()
		}
		if mergeErr != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, mergeErr)
		}
		found = true
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decoding merged configuration: %w", err)
		}
	}

	normaliseTemplateBindings(cfg)
	return cfg, nil
}

// normaliseTemplateBindings folds the legacy `pattern` alias into `template`
// (spec.md §6) so downstream code only ever reads Template.
func normaliseTemplateBindings(cfg *Config) {
	for i, b := range cfg.Templates {
		if b.Template == "" && b.Pattern != "" {
			cfg.Templates[i].Template = b.Pattern
		}
	}
}

// MergeParams implements spec.md §6's parameter precedence:
// command-line > per-template > file-level > empty.
func MergeParams(fileLevel, perTemplate, commandLine map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range fileLevel {
		out[k] = v
	}
	for k, v := range perTemplate {
		out[k] = v
	}
	for k, v := range commandLine {
		out[k] = v
	}
	return out
}
