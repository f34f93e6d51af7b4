package parties

import "github.com/shopspring/decimal"

// RegisterRequest is the payload for registering a customer or supplier.
type RegisterRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Phone          string          `json:"phone" validate:"omitempty,max=30"`
	Email          string          `json:"email" validate:"omitempty,email"`
	Address        string          `json:"address" validate:"omitempty,max=300"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// UpdateContactRequest changes contact details only; the opening balance is fixed at registration.
type UpdateContactRequest struct {
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=300"`
}

// ListRequest filters party listings.
type ListRequest struct {
	Kind   Kind
	Search string
	Limit  int
	Offset int
}
