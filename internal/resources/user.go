package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/dms-api/internal/model"
	"github.com/iliyamo/dms-api/internal/resource"
	"github.com/iliyamo/dms-api/internal/utils"
)

// DefaultCountry fills address.country when omitted.
const DefaultCountry = "India"

// UserSchema describes the users table.  The password column holds a bcrypt
// hash and is never serialized outward.
func UserSchema() *resource.Schema {
	return resource.NewSchema("User", "users",
		resource.Field{Name: "user_id", Type: resource.String, Required: true, Trim: true, Unique: true},
		resource.Field{Name: "name", Type: resource.String, Required: true, Trim: true},
		resource.Field{Name: "email", Type: resource.String, Required: true, Rules: "email", Trim: true, Lowercase: true, Unique: true},
		resource.Field{Name: "password", Type: resource.String, Required: true, Hidden: true},
		resource.Field{Name: "role_id", Type: resource.Number, Required: true},
		resource.Field{Name: "role_name", Type: resource.String, Trim: true},
		resource.Field{Name: "profile_image_url", Type: resource.String, Default: ""},
		resource.Field{Name: "contact", Type: resource.Object, Default: func() any { return toMap(model.Contact{}) }},
		resource.Field{Name: "address", Type: resource.Object, Default: func() any {
			return toMap(model.Address{Country: DefaultCountry})
		}},
		resource.Field{Name: "details", Type: resource.Object, Default: func() any { return map[string]any{} }},
		resource.Field{Name: "status", Type: resource.String, Default: model.UserActive, Rules: "oneof=" + model.UserActive + " " + model.UserInactive, Trim: true},
	)
}

// User is served at /user without soft delete.  roles resolves role_id on
// writes.
func User(roles resource.Store, bcryptCost int) Definition {
	return Definition{
		Path:   "user",
		Schema: UserSchema(),
		Hooks:  &UserHooks{Roles: roles, RoleSchema: RoleSchema(), BcryptCost: bcryptCost},
	}
}

// UserHooks hashes passwords, denormalizes the role name and shapes the
// nested sub-documents before a user is written.
type UserHooks struct {
	Roles      resource.Store
	RoleSchema *resource.Schema
	BcryptCost int
}

var (
	_ resource.Hooks      = (*UserHooks)(nil)
	_ resource.MergeHooks = (*UserHooks)(nil)
)

func (h *UserHooks) PreSave(ctx context.Context, payload resource.Record, _ resource.Action, _ resource.Caller) (resource.Record, error) {
	out := payload.Clone()

	if raw, ok := out["password"].(string); ok {
		if len(raw) < utils.MinPasswordLength {
			return nil, resource.NewValidationError("password", "minlength",
				fmt.Sprintf("Path `password` is shorter than the minimum allowed length (%d).", utils.MinPasswordLength), nil)
		}
		hash, err := utils.HashPassword(raw, h.BcryptCost)
		if err != nil {
			return nil, err
		}
		out["password"] = hash
	}

	roleName := ""
	if v, ok := out["role_id"]; ok && v != nil {
		name, err := h.lookupRole(ctx, v)
		if err != nil {
			return nil, err
		}
		roleName = name
		out["role_name"] = name
	} else {
		// role_name is derived, never client supplied.
		delete(out, "role_name")
	}

	if v, ok := out["contact"]; ok {
		var c model.Contact
		if err := fromMap(v, &c); err != nil {
			return nil, resource.NewValidationError("contact", "CastError", err.Error(), v)
		}
		c.Phone, c.AlternatePhone = strings.TrimSpace(c.Phone), strings.TrimSpace(c.AlternatePhone)
		out["contact"] = toMap(c)
	}
	if v, ok := out["address"]; ok {
		var a model.Address
		if err := fromMap(v, &a); err != nil {
			return nil, resource.NewValidationError("address", "CastError", err.Error(), v)
		}
		if a.Country == "" {
			a.Country = DefaultCountry
		}
		out["address"] = toMap(a)
	}
	if v, ok := out["details"]; ok {
		d, err := normalizeDetails(v, roleName)
		if err != nil {
			return nil, resource.NewValidationError("details", "CastError", err.Error(), v)
		}
		out["details"] = d
	}
	return out, nil
}

// PostMerge reshapes details against the role of the merged record, so an
// update that only changes role_id or only sends details still keeps the
// variant of the effective role.
func (h *UserHooks) PostMerge(_ context.Context, _, merged resource.Record, _ resource.Caller) (resource.Record, error) {
	roleName := merged.String("role_name")
	if roleName == "" {
		return merged, nil
	}
	v := merged["details"]
	if v == nil {
		v = map[string]any{}
	}
	d, err := normalizeDetails(v, roleName)
	if err != nil {
		return nil, resource.NewValidationError("details", "CastError", err.Error(), v)
	}
	out := merged.Clone()
	out["details"] = d
	return out, nil
}

// PostSave drops the password hash from the returned record.
func (h *UserHooks) PostSave(_ context.Context, rec resource.Record, _ resource.Action, _ resource.Caller) (resource.Record, error) {
	out := rec.Clone()
	delete(out, "password")
	return out, nil
}

func (h *UserHooks) lookupRole(ctx context.Context, v any) (string, error) {
	id, ok := roleID(v)
	if !ok {
		// Left for the schema to report as a cast failure.
		return "", nil
	}
	where := []resource.Condition{
		{Field: resource.FieldID, Op: resource.OpEq, Value: id},
		{Field: resource.FieldDeletedAt, Op: resource.OpIsNull},
	}
	role, err := h.Roles.FindOne(ctx, h.RoleSchema, where, []string{resource.FieldID, "name"})
	if errors.Is(err, resource.ErrNotFound) {
		return "", resource.NewValidationError("role_id", "ref", fmt.Sprintf("Role `%d` does not exist.", id), id)
	}
	if err != nil {
		return "", fmt.Errorf("lookup role %d: %w", id, err)
	}
	return role.String("name"), nil
}

func roleID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// normalizeDetails keeps only the variant matching roleName, with its
// defaults filled.  When the role is unknown every supplied variant is kept.
func normalizeDetails(v any, roleName string) (map[string]any, error) {
	var d model.UserDetails
	if err := fromMap(v, &d); err != nil {
		return nil, err
	}
	switch strings.ToLower(roleName) {
	case model.RoleAdmin:
		d = model.UserDetails{Admin: d.Admin}
		if d.Admin == nil {
			d.Admin = &model.AdminDetails{}
		}
	case model.RoleDealer:
		d = model.UserDetails{Dealer: d.Dealer}
		if d.Dealer == nil {
			d.Dealer = &model.DealerDetails{}
		}
	case model.RoleCustomer:
		d = model.UserDetails{Customer: d.Customer}
		if d.Customer == nil {
			d.Customer = &model.CustomerDetails{}
		}
	}
	if d.Admin != nil && d.Admin.Permissions == nil {
		d.Admin.Permissions = []string{}
	}
	if d.Customer != nil && d.Customer.CustomerType == "" {
		d.Customer.CustomerType = "individual"
	}
	return toMap(d), nil
}

func fromMap(v any, dst any) error {
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("expected an object, got %T", v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func toMap(v any) map[string]any {
	b, _ := json.Marshal(v)
	out := map[string]any{}
	_ = json.Unmarshal(b, &out)
	return out
}
