package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SaveInfo represents a saved project file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

const saveTimeLayout = "2006-01-02_15-04-05"

// ProjectsDir returns the projects directory path
func ProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locate home directory")
	}
	return filepath.Join(home, ".config", "go-mtcgen", "projects"), nil
}

// ProjectDir returns the path to a specific project
func ProjectDir(projectName string) (string, error) {
	base, err := ProjectsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, sanitizeFilename(projectName)), nil
}

// ListProjects returns all project folder names
func ListProjects() ([]string, error) {
	dir, err := ProjectsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, "list projects")
	}

	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}

	sort.Strings(projects)
	return projects, nil
}

// ListSaves returns timestamped saves for a project, newest first
func ListSaves(projectName string) ([]SaveInfo, error) {
	dir, err := ProjectDir(projectName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, errors.Wrapf(err, "list saves of %s", projectName)
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parseSaveName(entry.Name()); ok {
			saves = append(saves, info)
		}
	}

	sort.Slice(saves, func(i, j int) bool {
		if saves[i].Timestamp.Equal(saves[j].Timestamp) {
			return saves[i].Filename > saves[j].Filename
		}
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})

	return saves, nil
}

// parseSaveName reads 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_name.json
func parseSaveName(filename string) (SaveInfo, bool) {
	if !strings.HasSuffix(filename, ".json") {
		return SaveInfo{}, false
	}
	base := strings.TrimSuffix(filename, ".json")
	if len(base) < len(saveTimeLayout) {
		return SaveInfo{}, false
	}

	ts, err := time.ParseInLocation(saveTimeLayout, base[:len(saveTimeLayout)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}

	name := ""
	if rest := base[len(saveTimeLayout):]; len(rest) > 1 && rest[0] == '_' {
		name = rest[1:]
	}
	return SaveInfo{Filename: filename, Name: name, Timestamp: ts}, true
}

// SaveProject writes s as a new timestamped save and returns its filename.
// label, if set, is appended to the filename.
func SaveProject(projectName, label string, s State) (string, error) {
	if projectName == "" {
		projectName = "untitled"
	}

	dir, err := ProjectDir(projectName)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "create project %s", projectName)
	}

	data, err := MarshalState(s)
	if err != nil {
		return "", err
	}

	filename := time.Now().Format(saveTimeLayout)
	if label = sanitizeFilename(label); label != "" {
		filename += "_" + label
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", errors.Wrapf(err, "write %s", filename)
	}
	return filename, nil
}

// LoadProject reads a specific save (or most recent if filename empty)
func LoadProject(projectName, filename string) (State, error) {
	dir, err := ProjectDir(projectName)
	if err != nil {
		return State{}, err
	}

	if filename == "" {
		saves, err := ListSaves(projectName)
		if err != nil {
			return State{}, err
		}
		if len(saves) == 0 {
			return State{}, errors.Errorf("no saves found in project %s", projectName)
		}
		filename = saves[0].Filename
	}

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return State{}, errors.Wrapf(err, "read %s", filename)
	}
	return UnmarshalState(data)
}

// DeleteProject deletes entire project folder
func DeleteProject(name string) error {
	dir, err := ProjectDir(name)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.RemoveAll(dir), "delete project %s", name)
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	name = replacer.Replace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// SaveStore snapshots st into a new save of projectName.
func SaveStore(st StateStore, projectName, label string) (string, error) {
	return SaveProject(projectName, label, st.Snapshot())
}

// LoadStore restores st from a save (newest when filename is empty).
func LoadStore(st StateStore, projectName, filename string) error {
	s, err := LoadProject(projectName, filename)
	if err != nil {
		return err
	}
	st.Restore(s)
	return nil
}

// SaveProject snapshots the engine into a new save.
func (e *Engine) SaveProject(projectName, label string) (string, error) {
	return SaveStore(e, projectName, label)
}

// LoadProject restores the engine from a save (newest when filename is empty).
func (e *Engine) LoadProject(projectName, filename string) error {
	return LoadStore(e, projectName, filename)
}
