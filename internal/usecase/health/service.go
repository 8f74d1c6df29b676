package health

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	staging  StagingChecker
	resolver CommandResolver
	commands map[string]string
}

// New creates a Service. commands maps a check name (e.g. "search_command")
// to the executable it must resolve.
func New(staging StagingChecker, resolver CommandResolver, commands map[string]string) *Service {
	return &Service{staging: staging, resolver: resolver, commands: commands}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.commands)+1)

	if err := s.staging.Writable(ctx); err != nil {
		checks["staging"] = CheckError
	} else {
		checks["staging"] = CheckOK
	}

	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := s.resolver.Resolve(ctx, s.commands[name]); err != nil {
			checks[name] = CheckError
		} else {
			checks[name] = CheckOK
		}
	}

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == len(checks):
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

// PathResolver resolves commands the way the invoker starts them: bare names
// through PATH, relative paths against the process work directory.
type PathResolver struct {
	Workdir string
}

// Resolve implements CommandResolver.
func (r PathResolver) Resolve(_ context.Context, command string) error {
	if command == "" {
		return fmt.Errorf("empty command")
	}
	if r.Workdir != "" && !filepath.IsAbs(command) && strings.ContainsRune(command, filepath.Separator) {
		command = filepath.Join(r.Workdir, command)
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("resolve %s: %w", command, err)
	}
	return nil
}
