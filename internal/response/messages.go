package response

import "fmt"

type messageTable struct{}

// Messages is the lookup table of message templates keyed by operation.
var Messages messageTable

func (messageTable) CreateSuccess(r string) string   { return r + " created successfully" }
func (messageTable) FetchAllSuccess(r string) string { return r + " list fetched successfully" }
func (messageTable) FetchOneSuccess(r string) string { return r + " details fetched successfully" }
func (messageTable) UpdateSuccess(r string) string   { return r + " updated successfully" }
func (messageTable) DeleteSuccess(r string) string   { return r + " deleted successfully" }
func (messageTable) SoftDeleteSuccess(r string) string {
	return r + " soft deleted successfully"
}
func (messageTable) NotFound(r string) string      { return r + " not found" }
func (messageTable) AlreadyExists(r string) string { return r + " already exists" }

func (messageTable) BulkCreateSuccess(r string, n int) string {
	return fmt.Sprintf("%d %s(s) created successfully", n, r)
}
func (messageTable) BulkUpdateSuccess(r string, n int) string {
	return fmt.Sprintf("%d %s(s) updated successfully", n, r)
}
func (messageTable) BulkDeleteSuccess(r string, n int) string {
	return fmt.Sprintf("%d %s(s) deleted successfully", n, r)
}
func (messageTable) ExportSuccess(r string, n int) string {
	return fmt.Sprintf("%d %s(s) exported successfully", n, r)
}
func (messageTable) ImportSuccess(r string, n int) string {
	return fmt.Sprintf("%d %s(s) imported successfully", n, r)
}

// Fixed messages.
const (
	LoginSuccess        = "Logged in successfully"
	TokenRefreshed      = "Token refreshed successfully"
	TokenRevoked        = "Token revoked successfully"
	ValidationError     = "Validation failed. Please check your input"
	Unauthorized        = "Unauthorized access. Please login"
	Forbidden           = "Access forbidden. You don't have permission"
	InvalidCredentials  = "Invalid credentials"
	InvalidRefreshToken = "Invalid or expired refresh token"
	TokenNotFound       = "Token not found"
	TokenExpired        = "Session expired. Please login again"
	ServerError         = "Internal server error"
	InvalidJSON         = "Invalid JSON format"
	RateLimitExceeded   = "Too many requests. Please try again later"
)
