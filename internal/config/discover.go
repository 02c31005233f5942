package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var stackFileNames = []string{"stackctl.yaml", ".stackctl.yaml"}

// AppFileName is the per-application definition file discovered beneath
// the stack root.
const AppFileName = ".stackctl.app.yaml"

// Directories never descended into while looking for application files.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

// Discover locates the stack file for the given start directory and
// collects every application file beneath the stack root. If start is
// empty the current working directory is used. The stack file is found
// by walking up from start; application files are found by walking down
// from the stack root in lexical order.
func Discover(start string) (Project, error) {
	if start == "" {
		wd, err := osGetwd()
		if err != nil {
			return Project{}, fmt.Errorf("config: determine working directory: %w", err)
		}
		start = wd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return Project{}, fmt.Errorf("config: resolve start directory: %w", err)
	}

	stackPath, err := findStackFile(start)
	if err != nil {
		return Project{}, err
	}
	root := filepath.Dir(stackPath)

	var project Project
	project.Root = root
	project.StackPath = stackPath

	data, err := os.ReadFile(stackPath)
	if err != nil {
		return Project{}, fmt.Errorf("config: read stack file %s: %w", stackPath, err)
	}
	if err := yaml.Unmarshal(data, &project.Stack); err != nil {
		return Project{}, fmt.Errorf("config: parse stack file %s: %w", stackPath, err)
	}

	apps, err := findAppFiles(root)
	if err != nil {
		return Project{}, err
	}
	project.Apps = apps

	return project, nil
}

// findStackFile walks up from start until it finds a stack file or runs
// out of parent directories.
func findStackFile(start string) (string, error) {
	dir := start
	for {
		for _, name := range stackFileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no stack file found from %s upward", start)
		}
		dir = parent
	}
}

// findAppFiles walks the stack root collecting application files.
// Hidden directories, dependency trees, and the stack work directory
// are skipped. filepath.WalkDir visits entries in lexical order, so the
// result is deterministic.
func findAppFiles(root string) ([]AppEntry, error) {
	var apps []AppEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if skippedDirs[name] || name == WorkDirName || (len(name) > 1 && name[0] == '.') {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != AppFileName {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read app file %s: %w", path, err)
		}
		var app AppFile
		if err := yaml.Unmarshal(data, &app); err != nil {
			return fmt.Errorf("config: parse app file %s: %w", path, err)
		}
		apps = append(apps, AppEntry{
			Path: path,
			Dir:  filepath.Dir(path),
			App:  app,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// WorkDir returns the per-stack working directory, creating it if
// needed.
func WorkDir(root string) (string, error) {
	dir := filepath.Join(root, WorkDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("config: create work directory %s: %w", dir, err)
	}
	return dir, nil
}
