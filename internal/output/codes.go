// Package output provides JSON/styled output formatting and error handling.
package output

// Exit codes returned by the zinv binary.
const (
	ExitOK       = 0 // Success
	ExitUsage    = 1 // Invalid arguments or flags
	ExitNotFound = 2 // Item, SKU or warehouse did not resolve
	ExitAuth     = 3 // Token refresh failed or still unauthorized after retry
	ExitNetwork  = 6 // Connection/DNS/timeout error
	ExitAPI      = 7 // Upstream returned an error status
	ExitConfig   = 9 // Missing or invalid configuration
)

// Error codes for JSON envelope.
const (
	CodeUsage    = "usage"
	CodeNotFound = "not_found"
	CodeAuth     = "auth_required"
	CodeNetwork  = "network"
	CodeAPI      = "api_error"
	CodeConfig   = "config"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeNetwork:
		return ExitNetwork
	case CodeAPI:
		return ExitAPI
	case CodeConfig:
		return ExitConfig
	default:
		return ExitAPI
	}
}
