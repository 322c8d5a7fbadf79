package auth

// Role is an explicit admin-console role. Permission checks go through
// CanPerform rather than comparing role strings inline.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleCustomer Role = "CUSTOMER"
)

// Action is a capability tag guarding one class of admin operation.
type Action string

const (
	ActionFlashSalesRead  Action = "flash_sales:read"
	ActionFlashSalesWrite Action = "flash_sales:write"
	ActionOrdersRead      Action = "orders:read"
)

var capabilities = map[Role]map[Action]bool{
	RoleAdmin: {
		ActionFlashSalesRead:  true,
		ActionFlashSalesWrite: true,
		ActionOrdersRead:      true,
	},
	RoleManager: {
		ActionFlashSalesRead: true,
		ActionOrdersRead:     true,
	},
	RoleCustomer: {},
}

// CanPerform reports whether the role holds the capability. Unknown roles
// hold nothing.
func CanPerform(role Role, action Action) bool {
	return capabilities[role][action]
}
