package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// PasscodeLength is the number of digits in a generated passcode.
const PasscodeLength = 6

// GeneratePasscode generates a 6 digit numeric passcode in [100000, 999999],
// uniformly distributed, from a cryptographically secure random source.
func GeneratePasscode() (string, error) {
	// 900000 possible values, offset by 100000 so there is no leading zero
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate passcode: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
