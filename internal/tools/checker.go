package tools

import (
	"bytes"
	"os/exec"
	"strings"
)

// ToolRequirement represents an external tool dependency
type ToolRequirement struct {
	Name       string // Runner name
	Binary     string // Executable name or path
	Required   bool   // Whether scans are meaningful without it
	InstallCmd string // Installation command
	Purpose    string // One-line description
}

// CheckResult represents the result of checking a single tool
type CheckResult struct {
	Tool    ToolRequirement
	Found   bool
	Path    string
	Version string
}

// DefaultTools returns the external probers cybershield can drive
func DefaultTools() []ToolRequirement {
	return []ToolRequirement{
		{
			Name:       "zap",
			Binary:     "zap.sh",
			Required:   true,
			InstallCmd: "https://www.zaproxy.org/download/ (or snap install zaproxy --classic)",
			Purpose:    "Web vulnerability probing",
		},
		{
			Name:       "nmap",
			Binary:     "nmap",
			Required:   true,
			InstallCmd: "apt install nmap (or brew install nmap on macOS)",
			Purpose:    "Network service probing",
		},
		{
			Name:       "nuclei",
			Binary:     "nuclei",
			Required:   false,
			InstallCmd: "go install -v github.com/projectdiscovery/nuclei/v3/cmd/nuclei@latest",
			Purpose:    "Template-based web probing",
		},
	}
}

// WithBinaries overrides the binary of each requirement found in binaries,
// keyed by tool name.
func WithBinaries(reqs []ToolRequirement, binaries map[string]string) []ToolRequirement {
	out := make([]ToolRequirement, len(reqs))
	for i, r := range reqs {
		if b := binaries[r.Name]; b != "" {
			r.Binary = b
		}
		out[i] = r
	}
	return out
}

// CheckTools checks all tools in the provided list
func CheckTools(tools []ToolRequirement) []CheckResult {
	results := make([]CheckResult, len(tools))
	for i, tool := range tools {
		results[i] = CheckTool(tool)
	}
	return results
}

// CheckTool checks if a single tool is available
func CheckTool(tool ToolRequirement) CheckResult {
	result := CheckResult{Tool: tool}

	path, err := exec.LookPath(tool.Binary)
	if err != nil {
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = getVersion(path)

	return result
}

// getVersion asks the binary for its version, best effort
func getVersion(binary string) string {
	versionFlags := []string{"--version", "-version", "-v", "version"}

	for _, flag := range versionFlags {
		cmd := exec.Command(binary, flag)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err == nil && out.Len() > 0 {
			version := strings.TrimSpace(strings.Split(out.String(), "\n")[0])
			if len(version) > 50 {
				version = version[:50] + "..."
			}
			return version
		}
	}

	return "unknown"
}
