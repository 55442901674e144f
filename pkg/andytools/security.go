package andytools

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileAccessType is the kind of filesystem operation being gated.
type FileAccessType string

const (
	AccessRead    FileAccessType = "Read"
	AccessWrite   FileAccessType = "Write"
	AccessDelete  FileAccessType = "Delete"
	AccessExecute FileAccessType = "Execute"
)

var sensitiveSystemDirs = []string{
	"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/boot", "/sys", "/proc",
	`c:\windows`, `c:\program files`,
}

var executableExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".ps1": true,
	".sh": true, ".py": true, ".js": true, ".vbs": true,
}

var dangerousProcesses = map[string]bool{
	"cmd.exe": true, "powershell.exe": true, "bash": true, "sh": true,
	"python.exe": true, "node.exe": true, "ruby.exe": true,
}

// SecurityManager enforces the path, host and process access policy of
// spec.md §4.2 and keeps an append-only violation log; each entry carries
// the correlation id of the execution that raised it.
type SecurityManager struct {
	mu         sync.Mutex
	violations []SecurityViolation
}

// NewSecurityManager returns an empty SecurityManager.
func NewSecurityManager() *SecurityManager {
	return &SecurityManager{}
}

// ValidateExecution returns human-readable denial reasons for executing a
// tool under the given permission profile. An empty slice means the
// execution is authorized.
func (s *SecurityManager) ValidateExecution(metadata ToolMetadata, permissions ToolPermissions) []string {
	if allow, ok := permissions.ToolSpecificPermissions[metadata.ID]; ok && !allow {
		return []string{"Tool '" + metadata.ID + "' is explicitly disabled for this permission profile"}
	}

	v := NewValidator()
	result := v.ValidatePermissions(metadata, permissions)
	return result.Messages()
}

// RecordViolation appends a violation to the append-only log. Safe for
// concurrent use.
func (s *SecurityManager) RecordViolation(v SecurityViolation) {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.violations = append(s.violations, v)
	s.mu.Unlock()
}

// ViolationsSince returns a snapshot copy of every violation at or after t.
func (s *SecurityManager) ViolationsSince(t time.Time) []SecurityViolation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SecurityViolation, 0, len(s.violations))
	for _, v := range s.violations {
		if !v.Timestamp.Before(t) {
			out = append(out, v)
		}
	}
	return out
}

// ClearOldViolations purges entries older than maxAge and returns the count
// removed.
func (s *SecurityManager) ClearOldViolations(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.violations[:0:0]
	purged := 0
	for _, v := range s.violations {
		if v.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, v)
	}
	s.violations = kept
	return purged
}

// IsFileAccessAllowed implements spec.md §4.2's path policy: blocked paths
// always win over allowed paths, sensitive system directories are read-only
// by default, and executable extensions require an explicit grant.
func (s *SecurityManager) IsFileAccessAllowed(path string, permissions ToolPermissions, accessType FileAccessType) (bool, string) {
	if !permissions.FileSystemAccess {
		return false, "file system access is not granted"
	}

	if strings.ContainsAny(path, "<>") {
		return false, "path contains invalid characters"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, "path could not be resolved"
	}
	normalized := strings.ToLower(filepath.ToSlash(abs))

	for _, blocked := range permissions.BlockedPaths {
		if pathPrefixMatch(normalized, blocked) {
			return false, "path is explicitly blocked"
		}
	}

	if len(permissions.AllowedPaths) > 0 {
		allowed := false
		for _, a := range permissions.AllowedPaths {
			if pathPrefixMatch(normalized, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "path is not in the allowed path list"
		}
	}

	if isSensitiveSystemDir(normalized) && accessType != AccessRead {
		if !permissions.customBool("allow_system_write") {
			return false, "writes to system directories require customPermissions.allow_system_write"
		}
	}

	if accessType == AccessExecute {
		ext := strings.ToLower(filepath.Ext(normalized))
		if executableExtensions[ext] && !permissions.customBool("allow_executable") {
			return false, "executing this file type requires customPermissions.allow_executable"
		}
	}

	return true, ""
}

func pathPrefixMatch(normalized, pattern string) bool {
	p := strings.ToLower(filepath.ToSlash(pattern))
	return normalized == p || strings.HasPrefix(normalized, strings.TrimSuffix(p, "/")+"/")
}

func isSensitiveSystemDir(normalized string) bool {
	for _, dir := range sensitiveSystemDirs {
		if pathPrefixMatch(normalized, dir) {
			return true
		}
	}
	return false
}

// IsNetworkAccessAllowed implements spec.md §4.2's host policy.
func (s *SecurityManager) IsNetworkAccessAllowed(host string, permissions ToolPermissions) (bool, string) {
	if !permissions.NetworkAccess {
		return false, "network access is not granted"
	}

	host = strings.ToLower(strings.TrimSpace(host))

	for _, blocked := range permissions.BlockedHosts {
		if hostMatch(host, blocked) {
			return false, "host is explicitly blocked"
		}
	}

	if isLoopbackHost(host) && !permissions.customBool("allow_localhost") {
		return false, "loopback hosts require customPermissions.allow_localhost"
	}

	if len(permissions.AllowedHosts) > 0 {
		allowed := false
		for _, a := range permissions.AllowedHosts {
			if hostMatch(host, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false, "host is not in the allowed host list"
		}
	}

	if isPrivateIPv4(host) && !permissions.customBool("allow_private_networks") {
		return false, "private network ranges require customPermissions.allow_private_networks"
	}

	return true, ""
}

func hostMatch(host, pattern string) bool {
	pattern = strings.ToLower(pattern)
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(host, suffix) || host == pattern[2:]
	}
	return host == pattern
}

func isLoopbackHost(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return strings.HasPrefix(host, "127.")
	}
}

func isPrivateIPv4(host string) bool {
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return false
	}
	first := parts[0]
	switch {
	case first == "10":
		return true
	case first == "192" && len(parts) == 4 && parts[1] == "168":
		return true
	case first == "172":
		second, ok := parseOctet(parts[1])
		return ok && second >= 16 && second <= 31
	default:
		return false
	}
}

func parseOctet(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// IsProcessExecutionAllowed implements spec.md §4.2's process policy.
func (s *SecurityManager) IsProcessExecutionAllowed(name string, permissions ToolPermissions) (bool, string) {
	if !permissions.ProcessExecution {
		return false, "process execution is not granted"
	}
	if dangerousProcesses[strings.ToLower(name)] && !permissions.customBool("allow_dangerous_processes") {
		return false, "this process requires customPermissions.allow_dangerous_processes"
	}
	return true, ""
}
