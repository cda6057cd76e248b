package car

import (
	id "renavam/pkg/domain"
)

// PreviousOwner is a historical record appended when a transfer completes.
// Name is a snapshot of the owner's full name at transfer time; it does not
// follow later profile changes.
type PreviousOwner struct {
	UserID id.UserID `json:"userId"`
	Name   string    `json:"name"`
}

// Car is a registered vehicle. Plate is globally unique and immutable.
// OwnerID changes only when an ownership transfer completes; PreviousOwners
// and TransferHistory are append-only and never reordered.
type Car struct {
	ID              id.CarID        `json:"id"`
	Plate           string          `json:"plate"`
	Model           string          `json:"model"`
	ModelYear       int             `json:"modelYear"`
	ManufactureYear int             `json:"manufactureYear"`
	Color           string          `json:"color"`
	Mileage         int             `json:"mileage"`
	OwnerID         id.UserID       `json:"user"`
	PreviousOwners  []PreviousOwner `json:"previousOwners,omitempty"`
	TransferHistory []id.TransferID `json:"transferHistory,omitempty"`
}

// RegistrationInput carries the caller-supplied fields for a new car.
type RegistrationInput struct {
	Plate           string
	Model           string
	ModelYear       int
	ManufactureYear int
	Color           string
	Mileage         int
}
