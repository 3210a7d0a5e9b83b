package rbac

const (
	PermSchemaManage    = "schema:manage"
	PermStatsViewAll    = "stats:view-all"
	PermUsersList       = "users:list"
	PermResponsesAll    = "responses:view-all"
	PermExportAll       = "export:all"
	PermAuditView       = "audit:view"
	PermProviderView    = "provider:view"
	PermProviderClients = "provider:clients"
	PermProviderExport  = "provider:export"
	PermFormView        = "form:view"
	PermFormSave        = "form:save"
	PermFormSubmit      = "form:submit"
	PermDashboardOwn    = "dashboard:view-own"
)

// RolePermissions is the default policy keyed by role name.
var RolePermissions = map[string][]string{
	"user": {
		"form:*",
		PermDashboardOwn,
	},
	"agent": {
		"provider:*",
		PermFormView,
	},
	"admin": {
		"*",
	},
}
