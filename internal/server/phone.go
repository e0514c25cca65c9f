package server

import (
	"strings"
	"unicode"
)

// chatSuffix is the messaging-domain suffix appended to bare phone numbers.
const chatSuffix = "@c.us"

// NormalizePhone strips all whitespace from a phone identifier and appends
// the messaging-domain suffix unless it is already present. Idempotent.
func NormalizePhone(phone string) string {
	phone = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)

	if phone == "" {
		return ""
	}
	if strings.HasSuffix(phone, chatSuffix) {
		return phone
	}
	return phone + chatSuffix
}
