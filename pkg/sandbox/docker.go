package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CheckDocker verifies that the Docker daemon is available and responsive.
func CheckDocker() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "ps", "-q")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker is not available or not running: %w", err)
	}
	return nil
}

// dockerCommand builds the command that runs the interpreter driver inside an
// ephemeral container. The container lives as long as the interpreter process.
func dockerCommand(cfg Config, script string) (*exec.Cmd, error) {
	if err := checkFilesystemAccess(cfg.FilesystemAccess, cfg.WorkingDir); err != nil {
		return nil, err
	}
	return exec.Command("docker", buildDockerRunArgs(cfg, script)...), nil
}

func buildDockerRunArgs(cfg Config, script string) []string {
	// -i keeps stdin open for the driver protocol; --init reaps orphans left by user code
	args := []string{"run", "--rm", "-i", "--init", "--network", dockerNetwork(cfg)}

	limits := cfg.ResourceLimits
	if limits.MaxCPU > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(float64(limits.MaxCPU)/100, 'f', 2, 64))
	}
	if limits.MaxMemoryMB > 0 {
		args = append(args, "--memory", strconv.Itoa(limits.MaxMemoryMB)+"m")
	}
	if limits.MaxProcesses > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(limits.MaxProcesses))
	}
	if cfg.FilesystemAccess.ReadOnly {
		args = append(args, "--read-only")
	}

	if user := strings.TrimSpace(cfg.Docker.User); user != "" {
		args = append(args, "--user", user)
	}
	args = appendFlagEach(args, "--security-opt", cfg.Docker.SecurityOpt)
	args = appendFlagEach(args, "--cap-drop", cfg.Docker.CapDrop)
	args = append(args, cfg.Docker.ExtraArgs...)

	args = append(args, dockerMounts(cfg)...)
	if wd := strings.TrimSpace(cfg.WorkingDir); wd != "" {
		args = append(args, "-w", filepath.Clean(wd))
	}
	args = append(args, dockerEnv(cfg.Env)...)

	defaults := DefaultConfig()
	return append(args,
		orDefault(cfg.Docker.Image, defaults.Docker.Image),
		orDefault(cfg.PythonPath, defaults.PythonPath),
		"-u", "-c", script)
}

// dockerNetwork picks the container network. An explicit Docker.Network wins;
// otherwise NetworkAccess decides between bridge and none.
func dockerNetwork(cfg Config) string {
	if network := strings.TrimSpace(cfg.Docker.Network); network != "" {
		return network
	}
	if cfg.NetworkAccess.Enabled {
		return "bridge"
	}
	return "none"
}

// dockerMounts bind-mounts the working directory and every allowed path at
// the same location inside the container, sorted for stable output
func dockerMounts(cfg Config) []string {
	mode := "rw"
	if cfg.FilesystemAccess.ReadOnly {
		mode = "ro"
	}

	seen := make(map[string]bool)
	var paths []string
	for _, p := range append([]string{cfg.WorkingDir}, cfg.FilesystemAccess.AllowedPaths...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	args := make([]string, 0, 2*len(paths))
	for _, p := range paths {
		args = append(args, "-v", p+":"+p+":"+mode)
	}
	return args
}

// dockerEnv passes env into the container in key order
func dockerEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := []string{"-e", "PYTHONIOENCODING=utf-8"}
	for _, key := range keys {
		args = append(args, "-e", key+"="+env[key])
	}
	return args
}

func appendFlagEach(args []string, flag string, values []string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			args = append(args, flag, v)
		}
	}
	return args
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
