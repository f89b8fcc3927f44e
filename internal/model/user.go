package model

// User status values.
const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// Role names that select a details variant on a user.
const (
	RoleAdmin    = "admin"
	RoleDealer   = "dealer"
	RoleCustomer = "customer"
)

// Contact is the `contact` sub-document of a user.
type Contact struct {
	Phone          string `json:"phone"`
	AlternatePhone string `json:"alternate_phone"`
}

// Address is the `address` sub-document of a user.  Country defaults to
// India when omitted.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

// AdminDetails, DealerDetails and CustomerDetails are the role specific
// variants stored under `details`.
type AdminDetails struct {
	AdminCode   string   `json:"admin_code"`
	Permissions []string `json:"permissions"`
}

type DealerDetails struct {
	DealerCode   string `json:"dealer_code"`
	BusinessName string `json:"business_name"`
	GSTNumber    string `json:"gst_number"`
}

type CustomerDetails struct {
	CustomerID   string `json:"customer_id"`
	CustomerType string `json:"customer_type"`
}

// UserDetails holds at most one populated variant, selected by role name.
type UserDetails struct {
	Admin    *AdminDetails    `json:"admin,omitempty"`
	Dealer   *DealerDetails   `json:"dealer,omitempty"`
	Customer *CustomerDetails `json:"customer,omitempty"`
}
