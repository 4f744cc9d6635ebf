// Package utils provides small utility functions shared across the
// simple-verify system.
//
// All functions are pure, stateless and thread-safe.
//
// # SQL Null Type Conversions
//
// Convert optional string fields to sql.NullString for database storage,
// treating the empty string as NULL:
//
//	_, err := db.Exec(
//	    "INSERT INTO verification_codes (id, email, ip_address) VALUES ($1, $2, $3)",
//	    uuid.New(),
//	    email,
//	    utils.ToNullString(ipAddress),  // Converts "" to NULL
//	)
//
// Extract the valid values from a slice of sql.NullString:
//
//	nullStrings := []sql.NullString{
//	    {String: "Alice", Valid: true},
//	    {String: "", Valid: false},
//	}
//	validStrings := utils.GetValidStrings(nullStrings)
//	// Result: []string{"Alice"}
//
// # Email Masking
//
// Mask email addresses when displaying to users or logging:
//
//	masked := utils.MaskEmail("john.doe@example.com")
//	// Output: "j***e@example.com"
//
// Use cases:
//   - Logging without exposing full contact info
//   - Verification flows ("We sent a code to j***e@example.com")
//   - Audit trails
//
// Masking is for display only. It is not reversible-safe anonymization and
// must not be used as a privacy control for storage.
package utils
