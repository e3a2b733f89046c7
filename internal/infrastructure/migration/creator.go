package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"
)

var headerTemplate = template.Must(template.New("migration").Parse(
	`-- {{.Name}}{{if .Down}} (rollback){{end}}
-- Created {{.Created}}
{{- with .Description}}
-- {{.}}
{{- end}}

-- {{if .Down}}Undo{{else}}Apply{{end}} the schema change here.
`))

// versionWidth is the zero padded width of sequential migration versions
const versionWidth = 6

// MigrationFile is a newly created up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Created     string
	UpPath      string
	DownPath    string
}

// CreateMigration writes the next sequential up/down pair into dir,
// creating dir when needed. Versions continue from the highest one present.
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, errors.New("migration name must contain letters or digits")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	existing, err := ListMigrations(dir)
	if err != nil {
		return nil, err
	}

	version := fmt.Sprintf("%0*d", versionWidth, nextVersion(existing))
	stem := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:     version,
		Name:        name,
		Description: description,
		Created:     time.Now().UTC().Format(time.RFC3339),
		UpPath:      stem + ".up.sql",
		DownPath:    stem + ".down.sql",
	}

	if err := mf.write(mf.UpPath, false); err != nil {
		return nil, err
	}
	if err := mf.write(mf.DownPath, true); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// write creates path exclusively so an existing migration is never replaced
func (mf *MigrationFile) write(path string, down bool) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	data := struct {
		*MigrationFile
		Down bool
	}{mf, down}
	if err := headerTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases name and joins its words with underscores.
// Spaces, dashes and underscores separate words; other punctuation is dropped.
func sanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return unicode.ToLower(r)
		case r == ' ' || r == '-' || r == '_':
			return ' '
		}
		return -1
	}, name)
	return strings.Join(strings.Fields(cleaned), "_")
}

// nextVersion returns one past the highest numeric version in names
func nextVersion(names []string) int {
	highest := 0
	for _, name := range names {
		prefix, _, _ := strings.Cut(name, "_")
		if v, err := strconv.Atoi(prefix); err == nil {
			highest = max(highest, v)
		}
	}
	return highest + 1
}

// ListMigrations lists the migrations in dir. A missing dir has none.
func ListMigrations(dir string) ([]string, error) {
	names, err := List(os.DirFS(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	return names, err
}

// List returns the sorted migration names in fsys, named after their
// .up.sql files.
func List(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	names := make([]string, 0, len(ups))
	for _, up := range ups {
		if info, err := fs.Stat(fsys, up); err == nil && !info.IsDir() {
			names = append(names, strings.TrimSuffix(up, ".up.sql"))
		}
	}
	slices.Sort(names)
	return names, nil
}
