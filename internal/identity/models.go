package identity

import (
	"time"

	id "renavam/pkg/domain"
)

// User is a registered account. FullName and Email are fixed at registration;
// only birthday, password and the profile image can change afterwards.
// PasswordHash is an opaque secret and must never appear in any representation.
type User struct {
	ID              id.UserID
	FullName        string
	Email           string
	PasswordHash    string
	Birthday        *time.Time
	ProfileImageURL string
}

// ProfileUpdate enumerates the independently-optional profile fields. A nil
// pointer (or nil slice) means "leave unchanged" - there is no way to clear a
// field through this structure, matching the update endpoint's contract.
type ProfileUpdate struct {
	Birthday   *time.Time
	Password   *string
	AvatarData []byte
}

// Summary is the public projection used by user search and transfer status:
// no credential, no birthday.
type Summary struct {
	ID              id.UserID `json:"id"`
	FullName        string    `json:"fullName"`
	Email           string    `json:"email"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
}

// Summarize projects a user onto its public summary.
func (u *User) Summarize() Summary {
	return Summary{
		ID:              u.ID,
		FullName:        u.FullName,
		Email:           u.Email,
		ProfileImageURL: u.ProfileImageURL,
	}
}
