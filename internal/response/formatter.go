// Package response builds the uniform JSON envelope returned by every
// endpoint together with the message templates used to fill it.
package response

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Envelope is the wire shape shared by all responses.  Data is omitted when
// nil; an empty list is still rendered as [].
type Envelope struct {
	Success          bool        `json:"success"`
	Message          string      `json:"message,omitempty"`
	Data             any         `json:"data,omitempty"`
	Pagination       *Pagination `json:"pagination,omitempty"`
	TotalRecordCount *int64      `json:"total_record_count,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorDetails     any         `json:"error_details,omitempty"`
	Stack            string      `json:"stack,omitempty"`
}

// Pagination is attached to list responses when page and limit were valid.
type Pagination struct {
	CurrentPage      int   `json:"current_page"`
	Limit            int   `json:"limit"`
	TotalRecordCount int64 `json:"total_record_count"`
	TotalPages       int64 `json:"total_pages"`
}

// Success wraps data with a success message.  A blank message falls back to
// a generic one.
func Success(message string, data any) Envelope {
	if message == "" {
		message = "Operation completed successfully"
	}
	return Envelope{Success: true, Message: message, Data: data}
}

// SuccessWithCount is used for unpaginated lists.
func SuccessWithCount(message string, data any, total int64) Envelope {
	env := Success(message, data)
	env.TotalRecordCount = &total
	return env
}

// SuccessWithPagination is used for paginated lists.
func SuccessWithPagination(message string, data any, p Pagination) Envelope {
	env := Success(message, data)
	env.Pagination = &p
	return env
}

// Error builds a failure envelope.  details, when non-nil, is rendered as
// error_details.
func Error(message string, details any) Envelope {
	if message == "" {
		message = "An error occurred"
	}
	return Envelope{Success: false, Error: message, ErrorDetails: details}
}

// Paginate computes pagination metadata.
func Paginate(total int64, page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return Pagination{
		CurrentPage:      page,
		Limit:            limit,
		TotalRecordCount: total,
		TotalPages:       int64(math.Ceil(float64(total) / float64(limit))),
	}
}

// ResourceName turns a PascalCase type identifier into spaced words, e.g.
// "AuthUserToken" -> "Auth User Token".  Blank names become "Record".
func ResourceName(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "Record"
	}
	var b strings.Builder
	for i, r := range model {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Resource-scoped success helpers.

func CreateSuccess(resource string, data any) Envelope {
	return Success(Messages.CreateSuccess(resource), data)
}

func FetchOneSuccess(resource string, data any) Envelope {
	return Success(Messages.FetchOneSuccess(resource), data)
}

func UpdateSuccess(resource string, data any) Envelope {
	return Success(Messages.UpdateSuccess(resource), data)
}

func DeleteSuccess(resource string, data any) Envelope {
	return Success(Messages.DeleteSuccess(resource), data)
}

func SoftDeleteSuccess(resource string, data any) Envelope {
	return Success(Messages.SoftDeleteSuccess(resource), data)
}

// FetchAllSuccess picks the paginated or the counted variant.
func FetchAllSuccess(resource string, data any, total int64, p *Pagination) Envelope {
	if p != nil {
		return SuccessWithPagination(Messages.FetchAllSuccess(resource), data, *p)
	}
	return SuccessWithCount(Messages.FetchAllSuccess(resource), data, total)
}

// NotFound is the 404 envelope for a resource.
func NotFound(resource string) Envelope {
	return Error(Messages.NotFound(resource), nil)
}

// BatchMessage renders the message for a bulk action; unknown actions fall
// back to a generic completion message.
func BatchMessage(resource, action string, count int) string {
	switch action {
	case "create":
		return Messages.BulkCreateSuccess(resource, count)
	case "update":
		return Messages.BulkUpdateSuccess(resource, count)
	case "delete":
		return Messages.BulkDeleteSuccess(resource, count)
	case "import":
		return Messages.ImportSuccess(resource, count)
	case "export":
		return Messages.ExportSuccess(resource, count)
	}
	return fmt.Sprintf("%s completed for %d %s(s)", action, count, resource)
}
