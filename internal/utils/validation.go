package utils

import "regexp"

var starknetAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{1,64}$`)

// IsValidStarknetAddress reports whether s looks like a Starknet address:
// 0x followed by up to 64 hex digits (leading zeros may be trimmed on-chain).
func IsValidStarknetAddress(s string) bool {
	return starknetAddressRe.MatchString(s)
}
