package lookup

import "strings"

const macHexDigits = 12

// NormalizeMAC strips every non-hex character from the input and reformats
// the result as six colon-separated uppercase pairs. Inputs with fewer than
// twelve hex digits normalize to the empty string; extra digits beyond
// twelve are dropped (QR payloads sometimes append checksum characters).
func NormalizeMAC(raw string) string {
	var hex strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			hex.WriteRune(r)
		}
	}
	digits := hex.String()
	if len(digits) < macHexDigits {
		return ""
	}
	digits = digits[:macHexDigits]

	pairs := make([]string, 0, macHexDigits/2)
	for i := 0; i < macHexDigits; i += 2 {
		pairs = append(pairs, digits[i:i+2])
	}
	return strings.Join(pairs, ":")
}
