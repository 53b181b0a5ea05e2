package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	upAnnotation   = "-- +goose Up"
	downAnnotation = "-- +goose Down"
)

// ValidateDir checks the migrations on disk. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return err
	}
	return ValidateFS(sub)
}

// ValidateFS requires YYYYMMDDHHMMSS_name.sql filenames with unique versions,
// and an Up annotation that precedes the Down annotation in every file.
func ValidateFS(fsys fs.FS) error {
	versions, err := scanVersions(fsys)
	if err != nil {
		return err
	}
	for _, name := range versions {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		text := string(body)
		up, down := strings.Index(text, upAnnotation), strings.Index(text, downAnnotation)
		switch {
		case up < 0:
			return fmt.Errorf("migration %q missing %q", name, upAnnotation)
		case down < 0:
			return fmt.Errorf("migration %q missing %q", name, downAnnotation)
		case down < up:
			return fmt.Errorf("migration %q has its Down section before Up", name)
		}
	}
	return nil
}

// scanVersions maps every migration version in the root of fsys to its file.
func scanVersions(fsys fs.FS) (map[int64]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	versions := make(map[int64]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := versions[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, name)
		}
		versions[version] = name
	}
	return versions, nil
}
