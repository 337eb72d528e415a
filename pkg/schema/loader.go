package schema

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/jsonc"

	"github.com/skeetzo/minty-fresh-go/pkg/ipfs"
	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

//go:embed templates/*.json
var builtinTemplates embed.FS

type Config struct {
	// OverrideDir holds caller templates. A missing directory is ignored.
	OverrideDir string
	// Strict turns the fallback to the first template into an error.
	Strict bool
	Logger *zerolog.Logger
}

type Loader struct {
	overrideDir string
	strict      bool
	logger      *zerolog.Logger
}

// NewLoader creates a new Loader.
func NewLoader(config Config) *Loader {
	return &Loader{
		overrideDir: strings.TrimSpace(config.OverrideDir),
		strict:      config.Strict,
		logger:      shared.LoggerOrNop(config.Logger),
	}
}

// Load reads the templates from disk and returns the one matching
// nameOrAddress: by content address first, then by file name with the
// override directory taking precedence. When nothing matches, the first
// template is returned flagged as Ambiguous.
func (l *Loader) Load(nameOrAddress string) (*Template, error) {
	templates, err := l.Templates()
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, ErrTemplateNotFound
	}

	query := strings.TrimSpace(nameOrAddress)
	if ipfs.IsContentAddress(query) {
		address := ipfs.AddressFromURI(query)
		for _, template := range templates {
			if template.Address == address {
				return template, nil
			}
		}
	}

	name := templateName(query)
	var builtin *Template
	for _, template := range templates {
		if template.Name != name {
			continue
		}
		if template.Source == SourceOverride {
			return template, nil
		}
		if builtin == nil {
			builtin = template
		}
	}
	if builtin != nil {
		return builtin, nil
	}

	if l.strict {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, query)
	}

	fallback := templates[0]
	fallback.Ambiguous = true
	l.logger.Warn().
		Str("requested", query).
		Str("schema", fallback.Name).
		Str("source", fallback.Source).
		Msg("no schema template matched, falling back to the first template found")
	return fallback, nil
}

// Templates returns every template, built-in ones first, each group sorted
// by file name.
func (l *Loader) Templates() ([]*Template, error) {
	templates, err := loadDir(builtinTemplates, "templates", SourceBuiltin, "")
	if err != nil {
		return nil, err
	}

	if l.overrideDir == "" {
		return templates, nil
	}
	if _, err := os.Stat(l.overrideDir); errors.Is(err, os.ErrNotExist) {
		return templates, nil
	}
	overrides, err := loadDir(os.DirFS(l.overrideDir), ".", SourceOverride, l.overrideDir)
	if err != nil {
		return nil, err
	}
	return append(templates, overrides...), nil
}

func loadDir(fsys fs.FS, dir string, source string, diskDir string) ([]*Template, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema templates: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	templates := make([]*Template, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema template %s: %w", entry.Name(), err)
		}

		address, err := ipfs.ComputeCID(raw)
		if err != nil {
			return nil, err
		}
		template, err := parseTemplate(templateName(entry.Name()), jsonc.ToJSON(raw))
		if err != nil {
			return nil, err
		}
		template.Address = address
		template.Source = source
		if diskDir != "" {
			template.Path = filepath.Join(diskDir, entry.Name())
		} else {
			template.Path = path.Join(dir, entry.Name())
		}
		templates = append(templates, template)
	}
	return templates, nil
}

func isTemplateFile(name string) bool {
	extension := strings.ToLower(path.Ext(name))
	return extension == ".json" || extension == ".jsonc"
}

func templateName(value string) string {
	base := path.Base(filepath.ToSlash(value))
	for _, extension := range []string{".jsonc", ".json"} {
		if strings.HasSuffix(strings.ToLower(base), extension) {
			return base[:len(base)-len(extension)]
		}
	}
	return base
}
