package models

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers written without a
// country prefix.
const DefaultPhoneRegion = "KR"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

var usernameRules = []validation.Rule{validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)}

// SignUpInput is the payload accepted by sign-up.
type SignUpInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Phone    string `json:"phone"`
	Img      string `json:"img"`
}

// ValidateUsername checks only the username, so a duplicate can be
// reported before the other fields are looked at.
func (in SignUpInput) ValidateUsername() error {
	return validation.Errors{
		"username": validation.Validate(in.Username, usernameRules...),
	}.Filter()
}

func (in SignUpInput) Validate(region string) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, usernameRules...),
		validation.Field(&in.Password, validation.Required, validation.Length(3, 72)),
		validation.Field(&in.Nickname, validation.RuneLength(0, 30)),
		validation.Field(&in.Phone, validation.By(PhoneRule(region))),
		validation.Field(&in.Img, validation.Length(0, 512)),
	)
}

// ProfileUpdate carries the only fields a user may change about themselves.
// A nil field is left untouched.
type ProfileUpdate struct {
	Nickname *string `json:"nickname"`
	Phone    *string `json:"phone"`
	Img      *string `json:"img"`
}

func (in ProfileUpdate) Validate(region string) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Nickname, validation.RuneLength(0, 30)),
		validation.Field(&in.Phone, validation.By(PhoneRule(region))),
		validation.Field(&in.Img, validation.Length(0, 512)),
	)
}

// Empty reports whether the update carries no field at all.
func (in ProfileUpdate) Empty() bool {
	return in.Nickname == nil && in.Phone == nil && in.Img == nil
}

// Apply copies the supplied fields onto u.
func (in ProfileUpdate) Apply(u *User) {
	if in.Nickname != nil {
		u.Nickname = *in.Nickname
	}
	if in.Phone != nil {
		u.Phone = *in.Phone
	}
	if in.Img != nil {
		u.Img = *in.Img
	}
}

// MaxQuantity is the largest quantity the ingredients table can hold.
const MaxQuantity = math.MaxInt32

type NewIngredient struct {
	Name      string      `json:"name"`
	Quantity  *int        `json:"quantity"`
	Unit      string      `json:"unit"`
	ExpiresAt *ExpiryDate `json:"expiresAt"`
}

func (in NewIngredient) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 100)),
		validation.Field(&in.Quantity, validation.Min(0), validation.Max(MaxQuantity)),
		validation.Field(&in.Unit, validation.Length(0, 20)),
	)
}

// QuantityOrDefault returns the requested quantity, 1 when omitted.
func (in NewIngredient) QuantityOrDefault() int {
	if in.Quantity == nil {
		return 1
	}
	return *in.Quantity
}

// ExpiryTime returns the expiry as a time, nil when omitted.
func (in NewIngredient) ExpiryTime() *time.Time {
	if in.ExpiresAt == nil {
		return nil
	}
	t := in.ExpiresAt.Time
	return &t
}

// ExpiryDate accepts either a plain date (2006-01-02, read as UTC midnight)
// or an RFC 3339 timestamp.
type ExpiryDate struct {
	time.Time
}

func (d *ExpiryDate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	s := string(bytes.Trim(data, `"`))
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}

	return fmt.Errorf("expiresAt: %q is neither a date nor an RFC 3339 timestamp", s)
}

// RoleChange names a user and a role to grant or revoke.
type RoleChange struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (in RoleChange) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
	)
}

type FridgeRename struct {
	FridgeName string `json:"fridgeName"`
}

func (in FridgeRename) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FridgeName, validation.Required, validation.RuneLength(1, 50)),
	)
}

var errInvalidPhone = errors.New("must be a valid phone number")

// PhoneRule accepts an empty value or a number that phonenumbers considers
// valid for region.
func PhoneRule(region string) validation.RuleFunc {
	return func(value interface{}) error {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return nil
			}
			s = *v
		default:
			return errInvalidPhone
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return errInvalidPhone
		}
		return nil
	}
}

// NormalizePhone parses phone for region and formats it as E.164.
// Empty input is returned as is.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errInvalidPhone
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
