// Copyright (c) 2026 Studio. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Permissions

// Permission is a "resource:action" string.
type Permission = string

const (
	PermDashboardView Permission = "dashboard:view"

	PermBlogCreate  Permission = "blog:create"
	PermBlogRead    Permission = "blog:read"
	PermBlogUpdate  Permission = "blog:update"
	PermBlogDelete  Permission = "blog:delete"
	PermBlogPublish Permission = "blog:publish"

	PermProjectsCreate  Permission = "projects:create"
	PermProjectsRead    Permission = "projects:read"
	PermProjectsUpdate  Permission = "projects:update"
	PermProjectsDelete  Permission = "projects:delete"
	PermProjectsPublish Permission = "projects:publish"

	PermMediaUpload Permission = "media:upload"
	PermMediaRead   Permission = "media:read"
	PermMediaUpdate Permission = "media:update"
	PermMediaDelete Permission = "media:delete"

	PermNewsletterRead Permission = "newsletter:read"
	PermNewsletterSend Permission = "newsletter:send"

	PermAssessmentsRead   Permission = "assessments:read"
	PermAssessmentsDelete Permission = "assessments:delete"

	PermSettingsRead   Permission = "settings:read"
	PermSettingsUpdate Permission = "settings:update"

	PermUsersRead   Permission = "users:read"
	PermUsersCreate Permission = "users:create"
	PermUsersUpdate Permission = "users:update"
	PermUsersDelete Permission = "users:delete"

	PermAuditRead Permission = "audit:read"
)

// rolePermissions is the static role table.
//
// Each list is enumerated explicitly; there is no inheritance rule. The
// superadmin list contains admin's, which contains editor's, by construction.
var rolePermissions = map[Role][]Permission{
	RoleEditor: {
		PermDashboardView,
		PermBlogCreate, PermBlogRead, PermBlogUpdate,
		PermProjectsCreate, PermProjectsRead, PermProjectsUpdate,
		PermMediaUpload, PermMediaRead, PermMediaUpdate,
	},
	RoleAdmin: {
		PermDashboardView,
		PermBlogCreate, PermBlogRead, PermBlogUpdate, PermBlogDelete, PermBlogPublish,
		PermProjectsCreate, PermProjectsRead, PermProjectsUpdate, PermProjectsDelete, PermProjectsPublish,
		PermMediaUpload, PermMediaRead, PermMediaUpdate, PermMediaDelete,
		PermNewsletterRead, PermNewsletterSend,
		PermAssessmentsRead,
		PermSettingsRead,
		PermAuditRead,
	},
	RoleSuperAdmin: {
		PermDashboardView,
		PermBlogCreate, PermBlogRead, PermBlogUpdate, PermBlogDelete, PermBlogPublish,
		PermProjectsCreate, PermProjectsRead, PermProjectsUpdate, PermProjectsDelete, PermProjectsPublish,
		PermMediaUpload, PermMediaRead, PermMediaUpdate, PermMediaDelete,
		PermNewsletterRead, PermNewsletterSend,
		PermAssessmentsRead, PermAssessmentsDelete,
		PermSettingsRead, PermSettingsUpdate,
		PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
		PermAuditRead,
	},
}

// permissionIndex is the set form of rolePermissions, built once.
var permissionIndex = func() map[Role]map[Permission]struct{} {
	index := make(map[Role]map[Permission]struct{}, len(rolePermissions))
	for role, permissions := range rolePermissions {
		set := make(map[Permission]struct{}, len(permissions))
		for _, permission := range permissions {
			set[permission] = struct{}{}
		}
		index[role] = set
	}
	return index
}()

// Permissions returns a copy of the ordered permission list for role.
func Permissions(role Role) []Permission {
	list := rolePermissions[role]
	out := make([]Permission, len(list))
	copy(out, list)
	return out
}

// HasPermission reports whether role grants permission. Unknown roles grant nothing.
func HasPermission(role Role, permission Permission) bool {
	_, ok := permissionIndex[role][permission]
	return ok
}

// CanEditOwnResource applies the ownership rule on top of [HasPermission].
//
// Superadmin and admin are never owner-gated. Editors pass only when they
// created the resource.
func CanEditOwnResource(role Role, resourceOwnerID, requesterID int64, permission Permission) bool {
	if !HasPermission(role, permission) {
		return false
	}

	switch role {
	case RoleSuperAdmin, RoleAdmin:
		return true
	case RoleEditor:
		return resourceOwnerID == requesterID
	default:
		return false
	}
}
