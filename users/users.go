package users

import (
	"encoding/json"
	"strconv"
	"strings"
)

type MFAuthType string

const (
	MFNone          MFAuthType = "none"
	MFAuthenticator MFAuthType = "authenticator"
	MFEmail         MFAuthType = "email"
	MFTSms          MFAuthType = "sms"
)

// RoleType is the role the user service assigns to an account.
type RoleType string

const (
	RoleAdmin  RoleType = "admin"
	RoleUser   RoleType = "user"
	RoleViewer RoleType = "viewer"
)

// User is the profile record returned by the auth and user services and
// cached in the credential store while a session is active.
type User struct {
	ID         string     `json:"id,omitempty"`         // Unique identifier for the user
	Email      string     `json:"email,omitempty"`      // User's email address
	Name       string     `json:"name,omitempty"`       // Display name
	FirstName  string     `json:"firstName,omitempty"`  // First name of the user
	LastName   string     `json:"lastName,omitempty"`   // Last name of the user
	Role       RoleType   `json:"role,omitempty"`       // Role assigned by the user service
	Admin      bool       `json:"isAdmin,omitempty"`    // Admin, explicit admin flag
	MFType     MFAuthType `json:"mfaType,omitempty"`    // MFType, Multifactor type
	MFAEnabled bool       `json:"mfaEnabled,omitempty"` // MFAEnabled, second factor configured
	Verified   bool       `json:"verified,omitempty"`   // Verified, has the user verified who they are
}

func (u *User) MFAAuth() bool {
	return u.MFAEnabled || (u.MFType != "" && u.MFType != MFNone)
}

// IsAdmin returns true if the profile grants admin privileges
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.Admin || u.Role == RoleAdmin
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Email
}

// wireUser accepts the field spellings the backend services have used over
// time. UnmarshalJSON folds them into User.
type wireUser struct {
	ID          json.RawMessage `json:"id"`
	AltID       json.RawMessage `json:"_id"`
	UserID      json.RawMessage `json:"userId"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	FullName    string          `json:"fullName"`
	FirstName   string          `json:"firstName"`
	FirstNameS  string          `json:"first_name"`
	LastName    string          `json:"lastName"`
	LastNameS   string          `json:"last_name"`
	Role        string          `json:"role"`
	IsAdmin     *bool           `json:"isAdmin"`
	IsAdminS    *bool           `json:"is_admin"`
	MFType      string          `json:"mfaType"`
	MFAEnabled  *bool           `json:"mfaEnabled"`
	MFAEnabledS *bool           `json:"mfa_enabled"`
	Verified    bool            `json:"verified"`
}

func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*u = User{
		ID:        firstID(w.ID, w.AltID, w.UserID),
		Email:     strings.TrimSpace(w.Email),
		Name:      firstNonEmpty(w.Name, w.FullName),
		FirstName: firstNonEmpty(w.FirstName, w.FirstNameS),
		LastName:  firstNonEmpty(w.LastName, w.LastNameS),
		Role:      RoleType(strings.ToLower(strings.TrimSpace(w.Role))),
		MFType:    MFAuthType(strings.ToLower(w.MFType)),
		Verified:  w.Verified,
	}
	if w.IsAdmin != nil {
		u.Admin = *w.IsAdmin
	} else if w.IsAdminS != nil {
		u.Admin = *w.IsAdminS
	}
	if w.MFAEnabled != nil {
		u.MFAEnabled = *w.MFAEnabled
	} else if w.MFAEnabledS != nil {
		u.MFAEnabled = *w.MFAEnabledS
	}
	return nil
}

// firstID returns the first identifier present, whether the service sent it
// as a JSON string or a number.
func firstID(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if i, err := n.Int64(); err == nil {
				return strconv.FormatInt(i, 10)
			}
			return n.String()
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
