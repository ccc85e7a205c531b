package state

import (
	"net/mail"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// CustomerFields are collected once and carried forward for the life of the session.
type CustomerFields struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// placeholder values models and channels send for "don't know"
var blankValues = map[string]struct{}{
	"":             {},
	"na":           {},
	"n/a":          {},
	"none":         {},
	"null":         {},
	"unknown":      {},
	"-":            {},
	"not provided": {},
	"not given":    {},
	"customer":     {},
}

func isBlank(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimRight(v, ".!? ")
	_, ok := blankValues[v]
	return ok
}

// Merge applies explicit new values. Blank or placeholder values never
// overwrite a populated field. Returns true when anything changed.
func (c *CustomerFields) Merge(in contractx.CustomerInfo) bool {
	changed := false
	set := func(dst *string, v string) {
		if isBlank(v) {
			return
		}
		v = strings.TrimSpace(v)
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&c.Name, in.Name)
	set(&c.Email, in.Email)
	set(&c.Phone, normalizePhone(in.Phone))
	return changed
}

// FillMissing sets only the fields that are still empty, and only from
// values that look real. Used for contact fields a model puts in tool
// arguments.
func (c *CustomerFields) FillMissing(in contractx.CustomerInfo) bool {
	changed := false
	if c.Name == "" && !isBlank(in.Name) {
		c.Name = strings.TrimSpace(in.Name)
		changed = true
	}
	if c.Email == "" && validEmail(in.Email) {
		c.Email = strings.TrimSpace(in.Email)
		changed = true
	}
	if c.Phone == "" && validPhone(in.Phone) {
		c.Phone = normalizePhone(in.Phone)
		changed = true
	}
	return changed
}

func validEmail(v string) bool {
	v = strings.TrimSpace(v)
	if isBlank(v) {
		return false
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return false
	}
	at := strings.LastIndexByte(v, '@')
	return at > 0 && strings.Contains(v[at+1:], ".")
}

func validPhone(v string) bool {
	if isBlank(v) {
		return false
	}
	digits := 0
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7
}

// Missing lists unset fields in collection order.
func (c CustomerFields) Missing() []string {
	var out []string
	if c.Name == "" {
		out = append(out, "name")
	}
	if c.Email == "" {
		out = append(out, "email")
	}
	if c.Phone == "" {
		out = append(out, "phone")
	}
	return out
}

func (c CustomerFields) Info() contractx.CustomerInfo {
	return contractx.CustomerInfo{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// normalizePhone assumes +1 when a bare 10-digit number is given.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if isBlank(raw) {
		return raw
	}
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	switch {
	case len(digits) == 10:
		return "+1" + string(digits)
	case len(digits) == 11 && digits[0] == '1':
		return "+" + string(digits)
	default:
		return raw
	}
}
