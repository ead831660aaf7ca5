package sandbox

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// hostCommand builds the command that runs the interpreter driver directly on the host
func hostCommand(cfg Config, script string) (*exec.Cmd, error) {
	if err := checkFilesystemAccess(cfg.FilesystemAccess, cfg.WorkingDir); err != nil {
		return nil, err
	}

	python := strings.TrimSpace(cfg.PythonPath)
	if python == "" {
		python = DefaultConfig().PythonPath
	}

	cmd := exec.Command(python, "-u", "-c", script)
	if cfg.WorkingDir != "" {
		cmd.Dir = cfg.WorkingDir
	}
	cmd.Env = buildEnvironment(cfg.Env)
	return cmd, nil
}

// checkFilesystemAccess checks if a path is allowed
func checkFilesystemAccess(rules FilesystemAccess, path string) error {
	if path == "" {
		return nil
	}

	cleanPath := filepath.Clean(path)

	// Denied paths win over allowed ones
	for _, denied := range rules.DeniedPaths {
		if withinPath(cleanPath, denied) {
			return fmt.Errorf("%w: %s", ErrFilesystemAccessDenied, path)
		}
	}

	if len(rules.AllowedPaths) == 0 {
		return nil
	}

	for _, allowed := range rules.AllowedPaths {
		if withinPath(cleanPath, allowed) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrFilesystemAccessDenied, path)
}

func withinPath(path, root string) bool {
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

// buildEnvironment builds the interpreter environment. The host environment
// is not inherited.
func buildEnvironment(env map[string]string) []string {
	result := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=/tmp",
		"PYTHONIOENCODING=utf-8",
		"PYTHONDONTWRITEBYTECODE=1",
	}

	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		result = append(result, fmt.Sprintf("%s=%s", key, env[key]))
	}

	return result
}
