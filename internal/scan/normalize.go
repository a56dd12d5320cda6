package scan

import "strings"

// NormalizeBluetoothAddress strips separators and upper-cases a MAC address
// so "aa:bb-cc" and "AABBCC" compare equal.
func NormalizeBluetoothAddress(addr string) string {
	return strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(addr)))
}

// NormalizeBSSID strips colons and upper-cases a WiFi BSSID.
func NormalizeBSSID(bssid string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(bssid), ":", ""))
}
