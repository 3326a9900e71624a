package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed all:templates
var templateFS embed.FS

// scaffoldRoot is the embedded project skeleton.
const scaffoldRoot = "templates/project"

// copyTemplate copies the embedded project skeleton to targetDir. Existing
// files are kept unless force is set. It returns the written files.
func copyTemplate(targetDir string, force bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(templateFS, scaffoldRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := relTemplatePath(p)
		if rel == "." {
			return nil
		}
		target := filepath.Join(targetDir, filepath.FromSlash(renameSpecialFiles(rel)))

		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}

		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}

		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return err
		}
		written = append(written, renameSpecialFiles(rel))
		return nil
	})
	return written, err
}

func relTemplatePath(p string) string {
	if p == scaffoldRoot {
		return "."
	}
	return p[len(scaffoldRoot)+1:]
}

// renameSpecialFiles handles files that need renaming (e.g., dotfiles).
func renameSpecialFiles(p string) string {
	switch path.Base(p) {
	case "gitignore":
		return path.Join(path.Dir(p), ".gitignore")
	default:
		return p
	}
}

// listTemplateFiles returns the files of the project skeleton, sorted.
func listTemplateFiles() ([]string, error) {
	var files []string
	err := fs.WalkDir(templateFS, scaffoldRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, renameSpecialFiles(relTemplatePath(p)))
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// scaffoldConfig is the generated dsg.yml.
type scaffoldConfig struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Connection  struct {
		Type     string            `yaml:"type"`
		Settings map[string]string `yaml:"settings"`
	} `yaml:"connection"`
}

func projectConfigYAML(name, displayName string) ([]byte, error) {
	var cfg scaffoldConfig
	cfg.Name = name
	cfg.DisplayName = displayName
	cfg.Connection.Type = "duckdb"
	cfg.Connection.Settings = map[string]string{"file": ":memory:"}
	return yaml.Marshal(&cfg)
}
