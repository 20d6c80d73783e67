package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary one of the analyzers shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Commands may be bare names resolved on PATH or absolute paths.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		command := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     command,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if command == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(command); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", command)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
