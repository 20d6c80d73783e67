package preflight

import (
	"fmt"

	"proctor/internal/config"
)

// Result reports the outcome of a single readiness check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Evidence directory", cfg.Paths.EvidenceDir),
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available,
			Detail: binaryDetail(status.Command, status.Detail, status.Available),
		})
	}
	return results
}

func binaryDetail(command, detail string, available bool) string {
	if available {
		return fmt.Sprintf("%s (found)", command)
	}
	return detail
}
