package utils

import (
	"database/sql"
	"strings"
)

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

func GetValidStrings(nullStrings []sql.NullString) []string {
	var validStrings []string

	for _, ns := range nullStrings {
		if ns.Valid {
			validStrings = append(validStrings, ns.String)
		}
	}

	return validStrings
}

// MaskEmail masks the local part of an email address for display and logging.
// "john.doe@example.com" becomes "j***e@example.com". Addresses with a local
// part shorter than two characters are returned unchanged.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return email
	}
	local := email[:at]
	domain := email[at:]
	if len(local) == 2 {
		return local[:1] + "*" + local[1:] + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + domain
}
