package rbac

import "github.com/libreria-lumen/backoffice/internal/shared"

// Permissions checked by route groups.
const (
	PermCatalogManage      = "catalog.manage"
	PermCatalogView        = "catalog.view"
	PermCustomersManage    = "customers.manage"
	PermInventoryView      = "inventory.view"
	PermInventoryEdit      = "inventory.edit"
	PermSalesManage        = "sales.manage"
	PermReservationsManage = "reservations.manage"
	PermReportsView        = "reports.view"
	PermUsersManage        = "users.manage"
	PermAuditView          = "audit.view"
)

var rolePermissions = map[string][]string{
	shared.RoleAdmin: {
		PermCatalogManage, PermCatalogView, PermCustomersManage,
		PermInventoryView, PermInventoryEdit, PermSalesManage,
		PermReservationsManage, PermReportsView, PermUsersManage, PermAuditView,
	},
	shared.RoleEmployee: {
		PermCatalogView, PermCustomersManage, PermInventoryView, PermInventoryEdit,
		PermReservationsManage,
	},
}

// PermissionsFor returns the permissions granted to role.
func PermissionsFor(role string) []string {
	return rolePermissions[role]
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}
