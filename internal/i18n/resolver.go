// Package i18n resolves localized bot messages per business, language and key.
package i18n

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when a conversation has no language or a key is missing in it.
const DefaultLanguage = "en"

// MissingPrefix marks a key that has no text in any language.
const MissingPrefix = "⚠️ Missing message: "

// Source returns business-specific template overrides.
type Source interface {
	// Template returns the text for (businessID, lang, key); ok is false when there is no row.
	Template(ctx context.Context, businessID int64, lang, key string) (text string, ok bool, err error)
}

// Resolver looks up templates in the business overrides first and in the bundled locale files second.
type Resolver struct {
	mu          sync.RWMutex
	defaults    map[string]map[string]string
	defaultLang string
	dir         string
	source      Source
	log         *slog.Logger
}

// NewResolver loads the locale files in dir. source may be nil.
func NewResolver(dir, defaultLang string, source Source, log *slog.Logger) (*Resolver, error) {
	if log == nil {
		log = slog.Default()
	}
	if defaultLang == "" {
		defaultLang = DefaultLanguage
	}

	r := &Resolver{
		defaultLang: strings.ToLower(defaultLang),
		dir:         dir,
		source:      source,
		log:         log,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the locale directory.
func (r *Resolver) Reload() error {
	catalog, err := parseDir(r.dir)
	if err != nil {
		return err
	}
	if _, ok := catalog[r.defaultLang]; !ok {
		return fmt.Errorf("i18n: default language %q is missing", r.defaultLang)
	}

	r.mu.Lock()
	r.defaults = catalog
	r.mu.Unlock()
	return nil
}

// Languages returns the bundled languages in sorted order.
func (r *Resolver) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.defaults))
	for lang := range r.defaults {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

// Resolve returns the text for key. It never returns an empty string: when nothing matches in
// the requested or default language, a visible missing-message marker is returned.
func (r *Resolver) Resolve(ctx context.Context, businessID int64, lang, key string) string {
	key = strings.TrimSpace(key)
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = r.defaultLang
	}

	candidates := []string{lang}
	if lang != r.defaultLang {
		candidates = append(candidates, r.defaultLang)
	}

	for _, l := range candidates {
		if text, ok := r.fromSource(ctx, businessID, l, key); ok {
			return text
		}
		if text := r.bundled(l, key); text != "" {
			return text
		}
	}

	r.log.Warn("missing bot message", slog.Int64("business_id", businessID), slog.String("lang", lang), slog.String("key", key))
	return MissingPrefix + key
}

// Format resolves key and substitutes {name} placeholders from vars.
func (r *Resolver) Format(ctx context.Context, businessID int64, lang, key string, vars map[string]any) string {
	return Substitute(r.Resolve(ctx, businessID, lang, key), vars)
}

// Substitute replaces every {name} in text with the matching value from vars.
func Substitute(text string, vars map[string]any) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (r *Resolver) fromSource(ctx context.Context, businessID int64, lang, key string) (string, bool) {
	if r.source == nil {
		return "", false
	}
	text, ok, err := r.source.Template(ctx, businessID, lang, key)
	if err != nil {
		r.log.Error("failed to load bot message", slog.Int64("business_id", businessID), slog.String("key", key), slog.Any("error", err))
		return "", false
	}
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

func (r *Resolver) bundled(lang, key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entries := r.defaults[lang]; entries != nil {
		return entries[key]
	}
	return ""
}

func parseDir(dir string) (map[string]map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", dir, err)
	}

	catalog := make(map[string]map[string]string)
	var processed bool

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry) {
			continue
		}

		processed = true

		fileCatalog, err := parseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		for lang, translations := range fileCatalog {
			if _, ok := catalog[lang]; !ok {
				catalog[lang] = make(map[string]string)
			}
			for key, value := range translations {
				catalog[lang][key] = value
			}
		}
	}

	if !processed {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}

	return catalog, nil
}

func isYAML(entry fs.DirEntry) bool {
	return isYAMLName(entry.Name())
}

func isYAMLName(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func parseFile(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", path, err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return map[string]map[string]string{}, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", path, err)
	}

	catalog := make(map[string]map[string]string)
	for lang, value := range raw {
		langKey := strings.ToLower(strings.TrimSpace(lang))
		if langKey == "" {
			continue
		}

		nested, ok := value.(map[string]any)
		if !ok || len(nested) == 0 {
			continue
		}

		flattened := make(map[string]string)
		flatten("", nested, flattened)
		if len(flattened) > 0 {
			catalog[langKey] = flattened
		}
	}

	return catalog, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if key == "" {
			continue
		}

		nextKey := key
		if prefix != "" {
			nextKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			out[nextKey] = v
		case map[string]any:
			flatten(nextKey, v, out)
		}
	}
}
