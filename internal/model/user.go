package model

import "github.com/google/uuid"

// User is a test account created on the target service. AccountAmount is the
// initial credit the harness expects the target to honor.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	AccountAmount int       `json:"account_amount"`
}
