package rawapi

// Adopt stands in for a trusted-markup constructor in tests.
func Adopt(s string) string {
	return s
}
