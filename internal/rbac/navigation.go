package rbac

import "github.com/mdmops/console/internal/shared"

// DefaultNavigation is the console navigation tree before filtering.
func DefaultNavigation() []Node {
	return []Node{
		Leaf{Label: "Home", Target: "/home", Rule: AnyOf(shared.PermHomeView)},
		Group{
			Label: "Reconciliation",
			Rule:  AnyOf(shared.PermReconsView),
			Children: []Node{
				Leaf{Label: "Upload & Compare", Target: "/recons/compare", Rule: AllOf(shared.PermReconsView, shared.PermReconsUpload)},
				Leaf{Label: "Progress", Target: "/recons/progress", Rule: AnyOf(shared.PermReconsProgress)},
				Leaf{Label: "Exports", Target: "/recons/exports", Rule: AnyOf(shared.PermReconsExport)},
			},
		},
		Leaf{Label: "Email Tracker", Target: "/email-tracker", Rule: AnyOf(shared.PermEmailTrackerView)},
		Group{
			Label: "Reports",
			Rule:  AnyOf(shared.PermReportsView),
			Children: []Node{
				Leaf{Label: "Status", Target: "/reports/status", Rule: AnyOf(shared.PermReportsStatusView)},
			},
		},
		Group{
			Label: "Administration",
			Children: []Node{
				Leaf{Label: "Users", Target: "/admin/users", Rule: AnyOf(shared.PermUsersView, shared.PermUsersEdit)},
				Leaf{Label: "Roles", Target: "/admin/roles", Rule: AnyOf(shared.PermRolesEdit)},
				Leaf{Label: "Licenses", Target: "/admin/licenses", Rule: AnyOf(shared.PermLicensesView)},
			},
			Rule: AllOf(shared.PermRolesEdit, shared.PermUsersEdit),
		},
		Group{
			Label: "System",
			Rule:  AnyOf(shared.PermHealthView, shared.PermJobsView),
			Children: []Node{
				Leaf{Label: "Health", Target: "/system/health", Rule: AnyOf(shared.PermHealthView)},
				Leaf{Label: "Jobs", Target: "/jobs/health", Rule: AnyOf(shared.PermJobsView)},
			},
		},
	}
}
