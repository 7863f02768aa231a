// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the MCP server is registered under.
const ServerName = "pregnancy-risk"

// BinaryName is the MCP server executable.
const BinaryName = "mcp-server"

// dataDirEnv must match the lite configuration's data directory variable.
const dataDirEnv = "PREGNANCY_RISK_DATA_DIR"

// ClientConfig represents an MCP client configuration file.
// Unknown top-level keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for registering the server.
type Options struct {
	ConfigPath string // Client config file; empty uses the Claude Desktop default
	BinaryPath string // Path to the server binary; empty searches common locations
	DataDir    string // Data directory passed to the server
}

// Status represents the current registration status.
type Status struct {
	ConfigPath string
	Registered bool
	ServerPath string
	DataDir    string
	Issues     []string
}

// DefaultConfigPath returns the path to Claude Desktop's config file.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	var configDir string
	switch runtime.GOOS {
	case "darwin":
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig loads a client configuration. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	config := &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return config, nil
}

// SaveClientConfig writes the configuration, creating its directory.
func SaveClientConfig(path string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(config.extra)+1)
	for k, v := range config.extra {
		out[k] = v
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or updates the MCP server entry and returns the config path used.
func Register(opts Options) (string, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	config, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = findBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := MCPServerConfig{Command: binaryPath}
	if opts.DataDir != "" {
		entry.Env = map[string]string{dataDirEnv: opts.DataDir}
	}
	config.MCPServers[ServerName] = entry

	return path, SaveClientConfig(path, config)
}

// GetStatus reports whether the server is registered and runnable.
func GetStatus(configPath string) (*Status, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: path, Issues: []string{}}

	config, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "MCP server is not registered")
		return status, nil
	}
	status.Registered = true
	status.ServerPath = entry.Command
	status.DataDir = entry.Env[dataDirEnv]

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}
	return status, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	locations := []string{
		"./" + BinaryName,
		"./bin/" + BinaryName,
		filepath.Join(os.Getenv("HOME"), ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", BinaryName)
}
