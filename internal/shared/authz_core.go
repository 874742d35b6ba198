package shared

// Console permission keys. Keys are dot-delimited; role permission maps may
// grant or deny whole branches with "<prefix>.*" or everything with "*".
const (
	PermHomeView = "home.view"

	PermReconsView     = "recons.view"
	PermReconsUpload   = "recons.upload"
	PermReconsExport   = "recons.export"
	PermReconsProgress = "recons.progress.view"

	PermEmailTrackerView = "email.tracker.view"

	PermReportsView       = "reports.view"
	PermReportsStatusView = "reports.status.view"

	PermUsersView     = "admin.users.view"
	PermUsersEdit     = "admin.users.edit"
	PermRolesEdit     = "admin.roles.edit"
	PermLicensesView  = "admin.licenses.view"
	PermLicensesEdit  = "admin.licenses.edit"
	PermHealthView    = "system.health.view"
	PermHealthCheck   = "system.health.check"
	PermJobsView      = "system.jobs.view"
	PermissionWildAll = "*"
)

// Built-in role names. Roles are open-ended; these are the ones seeded at
// provisioning.
const (
	RoleAdmin  = "admin"
	RoleUser   = "user"
	RoleViewer = "viewer"
)

// ConsoleScopes lists every concrete permission key known to the console.
func ConsoleScopes() []string {
	return []string{
		PermHomeView,
		PermReconsView,
		PermReconsUpload,
		PermReconsExport,
		PermReconsProgress,
		PermEmailTrackerView,
		PermReportsView,
		PermReportsStatusView,
		PermUsersView,
		PermUsersEdit,
		PermRolesEdit,
		PermLicensesView,
		PermLicensesEdit,
		PermHealthView,
		PermHealthCheck,
		PermJobsView,
	}
}

// DefaultRolePermissions is the seed permission map per built-in role.
func DefaultRolePermissions() map[string]map[string]bool {
	return map[string]map[string]bool{
		RoleAdmin: {PermissionWildAll: true},
		RoleUser: {
			PermHomeView:         true,
			"recons.*":           true,
			PermEmailTrackerView: true,
			"reports.*":          true,
			PermHealthView:       true,
		},
		RoleViewer: {
			PermHomeView:          true,
			PermReconsProgress:    true,
			PermEmailTrackerView:  true,
			PermReportsView:       true,
			PermReportsStatusView: false,
		},
	}
}
