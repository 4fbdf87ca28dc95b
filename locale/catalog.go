package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"agones-battleground/battleground"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other locale falls back to.
const BaseLocale = "en"

//go:embed locales/*.yaml
var embeddedFS embed.FS

type localeFile struct {
	Locale string                         `yaml:"locale"`
	Texts  map[battleground.TextID]string `yaml:"texts"`
}

// Catalog formats battleground texts for a recipient locale. It is read-only
// after loading and safe for concurrent use.
type Catalog struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	known   map[language.Tag]map[battleground.TextID]bool
}

// LoadEmbedded loads the locales shipped with the binary.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedFS)
}

// LoadDir loads locales/*.yaml below dir.
func LoadDir(dir string) (*Catalog, error) {
	return LoadFromFS(os.DirFS(dir))
}

// LoadFromFS loads every locales/*.yaml file of fsys.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(base)),
		known:   map[language.Tag]map[battleground.TextID]bool{},
	}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", p, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", p, err)
		}
		if err := c.add(p, file); err != nil {
			return nil, err
		}
	}
	if _, ok := c.known[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}

	// The matcher falls back to its first tag.
	sort.SliceStable(c.tags, func(i, j int) bool { return c.tags[i] == base && c.tags[j] != base })
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) add(p string, file localeFile) error {
	name := strings.TrimSpace(file.Locale)
	if name == "" {
		return fmt.Errorf("locale %s: locale is required", p)
	}
	if want := strings.TrimSuffix(path.Base(p), path.Ext(p)); name != want {
		return fmt.Errorf("locale %s: locale %q must match file name %q", p, name, want)
	}
	tag, err := language.Parse(name)
	if err != nil {
		return fmt.Errorf("locale %s: parse tag %q: %w", p, name, err)
	}
	if len(file.Texts) == 0 {
		return fmt.Errorf("locale %s: texts are required", p)
	}

	known := make(map[battleground.TextID]bool, len(file.Texts))
	for id, format := range file.Texts {
		if err := c.builder.SetString(tag, key(id), format); err != nil {
			return fmt.Errorf("locale %s: text %d: %w", p, id, err)
		}
		known[id] = true
	}
	c.known[tag] = known
	c.tags = append(c.tags, tag)
	return nil
}

func key(id battleground.TextID) string {
	return fmt.Sprintf("text.%d", id)
}

// Match returns the supported locale closest to the requested one.
func (c *Catalog) Match(locale string) language.Tag {
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return c.tags[0]
	}
	_, idx, _ := c.matcher.Match(requested)
	return c.tags[idx]
}

// Text formats a text id for locale, falling back to the base locale and then
// to the bare id.
func (c *Catalog) Text(locale string, id battleground.TextID, args ...any) string {
	tag := c.Match(locale)
	if !c.known[tag][id] {
		tag = c.tags[0]
	}
	if !c.known[tag][id] {
		return fmt.Sprintf("#%d", id)
	}
	return message.NewPrinter(tag, message.Catalog(c.builder)).Sprintf(key(id), args...)
}

// Locales lists the loaded locales.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.tags))
	for _, tag := range c.tags {
		out = append(out, tag.String())
	}
	sort.Strings(out)
	return out
}
