// Package resources declares the entities exposed through the generic
// resource controller: their schemas, soft delete policy and hooks.
package resources

import "github.com/iliyamo/dms-api/internal/resource"

// Definition binds a route path to a controller configuration.
type Definition struct {
	Path       string
	Schema     *resource.Schema
	SoftDelete bool
	Hooks      resource.Hooks
}

// RoleSchema describes the roles table.
func RoleSchema() *resource.Schema {
	return resource.NewSchema("Role", "roles",
		resource.Field{Name: "role_code", Type: resource.String, Rules: "max=10", Trim: true, Unique: true},
		resource.Field{Name: "name", Type: resource.String, Required: true, Rules: "min=2,max=50", Trim: true, Unique: true},
		resource.Field{Name: "description", Type: resource.String, Rules: "max=200", Trim: true},
		resource.Field{Name: "is_active", Type: resource.Boolean, Default: true},
	).WithSoftDelete()
}

// Role is served at /role with soft delete.
func Role() Definition {
	return Definition{Path: "role", Schema: RoleSchema(), SoftDelete: true, Hooks: resource.NopHooks{}}
}
