package rbac

// 权限常量
const (
	PermissionReadSchedule        = "schedule:read"
	PermissionRecalculateSchedule = "schedule:recalculate"
)

// 角色常量
const (
	RoleViewer  = "viewer"
	RolePlanner = "planner"
	RoleAdmin   = "admin"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleViewer: {
		PermissionReadSchedule,
	},
	RolePlanner: {
		PermissionReadSchedule,
		PermissionRecalculateSchedule,
	},
	RoleAdmin: {
		PermissionReadSchedule,
		PermissionRecalculateSchedule,
	},
}

// HasPermission 检查角色是否有指定权限，未知角色没有任何权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(role string, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions: " + e.Permission
}
