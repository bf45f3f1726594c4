package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"charmcraftcache/internal/config"
)

// Requirement defines an external binary ccc runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
	// Path is the resolved executable when available.
	Path string
}

// Requirements lists the binaries ccc needs under cfg. git is optional when
// the charm identity is configured explicitly.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "charmcraft",
			Command:     cfg.CharmcraftBinary(),
			Description: "Packs the charm",
		},
		{
			Name:        "git",
			Command:     cfg.GitBinary(),
			Description: "Detects the charm's GitHub repository",
			Optional:    strings.TrimSpace(cfg.Charm.Repository) != "",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
