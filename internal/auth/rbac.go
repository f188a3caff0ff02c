package auth

const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

const (
	PermissionWorkspaceInvite = "workspace:invite"
	PermissionVideoUpload     = "video:upload"
	PermissionVideoView       = "video:view"
)

var rolePermissions = map[string]map[string]bool{
	RoleOwner: {
		PermissionWorkspaceInvite: true,
		PermissionVideoUpload:     true,
		PermissionVideoView:       true,
	},
	RoleEditor: {
		PermissionVideoUpload: true,
		PermissionVideoView:   true,
	},
	RoleViewer: {
		PermissionVideoView: true,
	},
}

// HasPermission is a pure lookup; unknown roles hold no permissions.
func HasPermission(role, permission string) bool {
	return rolePermissions[role][permission]
}

// ValidRole reports whether the role is one this service assigns.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
