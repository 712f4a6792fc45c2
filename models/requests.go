package models

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	noDigits     = regexp.MustCompile(`^[^0-9]*$`)
	phonePattern = regexp.MustCompile(`^[0-9]{9}$`)
	hasLetter    = regexp.MustCompile(`[A-Za-z]`)
	hasDigit     = regexp.MustCompile(`[0-9]`)
)

// ContactForm is the checkout form. Guests must fill it in; authenticated
// shoppers may send it empty, or set SaveToProfile to update their profile
// before checkout.
type ContactForm struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	SaveToProfile bool   `json:"save_to_profile"`
}

// Name is the printed contact name.
func (f ContactForm) Name() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}

// Validate checks a form that must stand on its own as contact details.
// It returns field name -> message for every violation.
func (f ContactForm) Validate() map[string]string {
	problems := map[string]string{}
	if f.Name() == "" {
		problems["first_name"] = "name is required"
	}
	if !noDigits.MatchString(f.FirstName) {
		problems["first_name"] = "first name must not contain digits"
	}
	if !noDigits.MatchString(f.LastName) {
		problems["last_name"] = "last name must not contain digits"
	}
	if !phonePattern.MatchString(strings.TrimSpace(f.Phone)) {
		problems["phone"] = "phone must be 9 digits"
	}
	if !validAddress(f.Address) {
		problems["address"] = "address must contain a street and a number"
	}
	return problems
}

// ProfileUpdate carries the editable fields of the "my data" page.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// Validate applies the same field rules as the checkout form; empty fields
// are allowed and mean "clear".
func (p ProfileUpdate) Validate() map[string]string {
	problems := map[string]string{}
	if !noDigits.MatchString(p.FirstName) {
		problems["first_name"] = "first name must not contain digits"
	}
	if !noDigits.MatchString(p.LastName) {
		problems["last_name"] = "last name must not contain digits"
	}
	if p.Phone != "" && !phonePattern.MatchString(strings.TrimSpace(p.Phone)) {
		problems["phone"] = "phone must be 9 digits"
	}
	if p.Address != "" && !validAddress(p.Address) {
		problems["address"] = "address must contain a street and a number"
	}
	return problems
}

// Apply copies the update onto u.
func (p ProfileUpdate) Apply(u *User) {
	u.FirstName = strings.TrimSpace(p.FirstName)
	u.LastName = strings.TrimSpace(p.LastName)
	u.Phone = strings.TrimSpace(p.Phone)
	u.Address = strings.TrimSpace(p.Address)
}

// ProfileUpdateFrom keeps the non-empty fields of a checkout form on top of
// the current profile.
func ProfileUpdateFrom(u *User, f ContactForm) ProfileUpdate {
	pick := func(submitted, current string) string {
		if strings.TrimSpace(submitted) != "" {
			return submitted
		}
		return current
	}
	return ProfileUpdate{
		FirstName: pick(f.FirstName, u.FirstName),
		LastName:  pick(f.LastName, u.LastName),
		Phone:     pick(f.Phone, u.Phone),
		Address:   pick(f.Address, u.Address),
	}
}

func validAddress(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && hasLetter.MatchString(s) && hasDigit.MatchString(s)
}

// FormatProblems renders validation problems in a stable order for logs.
func FormatProblems(problems map[string]string) string {
	order := []string{"first_name", "last_name", "phone", "address"}
	parts := make([]string, 0, len(problems))
	for _, k := range order {
		if msg, ok := problems[k]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", k, msg))
		}
	}
	return strings.Join(parts, "; ")
}
