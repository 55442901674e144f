package andytools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityManager_IsFileAccessAllowed(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		permission ToolPermissions
		accessType FileAccessType
		wantAllow  bool
	}{
		{
			name:       "no filesystem access at all",
			path:       "/tmp/data.txt",
			permission: ToolPermissions{},
			accessType: AccessRead,
			wantAllow:  false,
		},
		{
			name:       "blocked path wins over broad access",
			path:       "/etc/passwd",
			permission: ToolPermissions{FileSystemAccess: true, BlockedPaths: []string{"/etc"}},
			accessType: AccessRead,
			wantAllow:  false,
		},
		{
			name:       "write to sensitive system dir requires explicit grant",
			path:       "/etc/hosts",
			permission: ToolPermissions{FileSystemAccess: true},
			accessType: AccessWrite,
			wantAllow:  false,
		},
		{
			name: "write to sensitive system dir allowed with grant",
			path: "/etc/hosts",
			permission: ToolPermissions{FileSystemAccess: true}.
				WithCustomPermission("allow_system_write", true),
			accessType: AccessWrite,
			wantAllow:  true,
		},
		{
			name:       "path outside allowed list rejected",
			path:       "/var/data/file.txt",
			permission: ToolPermissions{FileSystemAccess: true, AllowedPaths: []string{"/home/user"}},
			accessType: AccessRead,
			wantAllow:  false,
		},
		{
			name:       "plain read within unrestricted access is allowed",
			path:       "/home/user/notes.txt",
			permission: ToolPermissions{FileSystemAccess: true},
			accessType: AccessRead,
			wantAllow:  true,
		},
	}

	s := NewSecurityManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := s.IsFileAccessAllowed(tt.path, tt.permission, tt.accessType)
			assert.Equal(t, tt.wantAllow, allowed)
			if !tt.wantAllow {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestSecurityManager_IsNetworkAccessAllowed(t *testing.T) {
	s := NewSecurityManager()

	allowed, _ := s.IsNetworkAccessAllowed("example.com", ToolPermissions{})
	assert.False(t, allowed)

	allowed, _ = s.IsNetworkAccessAllowed("localhost", ToolPermissions{NetworkAccess: true})
	assert.False(t, allowed, "loopback requires explicit opt-in")

	allowed, _ = s.IsNetworkAccessAllowed("localhost", ToolPermissions{NetworkAccess: true}.WithCustomPermission("allow_localhost", true))
	assert.True(t, allowed)

	allowed, _ = s.IsNetworkAccessAllowed("evil.example.com", ToolPermissions{NetworkAccess: true, BlockedHosts: []string{"*.example.com"}})
	assert.False(t, allowed)

	allowed, _ = s.IsNetworkAccessAllowed("api.trusted.com", ToolPermissions{NetworkAccess: true, AllowedHosts: []string{"*.trusted.com"}})
	assert.True(t, allowed)
}

func TestSecurityManager_IsProcessExecutionAllowed(t *testing.T) {
	s := NewSecurityManager()

	allowed, _ := s.IsProcessExecutionAllowed("ls", ToolPermissions{})
	assert.False(t, allowed)

	allowed, _ = s.IsProcessExecutionAllowed("bash", ToolPermissions{ProcessExecution: true})
	assert.False(t, allowed, "dangerous shells need explicit opt-in")

	allowed, _ = s.IsProcessExecutionAllowed("ls", ToolPermissions{ProcessExecution: true})
	assert.True(t, allowed)
}

func TestSecurityManager_ViolationLifecycle(t *testing.T) {
	s := NewSecurityManager()
	now := time.Now()

	s.RecordViolation(SecurityViolation{ToolID: "reader", Timestamp: now.Add(-2 * time.Hour)})
	s.RecordViolation(SecurityViolation{ToolID: "writer", Timestamp: now})

	recent := s.ViolationsSince(now.Add(-time.Hour))
	require.Len(t, recent, 1)
	assert.Equal(t, "writer", recent[0].ToolID)

	purged := s.ClearOldViolations(time.Hour)
	assert.Equal(t, 1, purged)
	assert.Len(t, s.ViolationsSince(time.Time{}), 1)
}

func TestSecurityManager_ValidateExecutionRespectsToolSpecificDenial(t *testing.T) {
	s := NewSecurityManager()
	meta := ToolMetadata{ID: "echo", Category: CategoryUtility}
	perms := ToolPermissions{ToolSpecificPermissions: map[string]bool{"echo": false}}

	reasons := s.ValidateExecution(meta, perms)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "explicitly disabled")
}
