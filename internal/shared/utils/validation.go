package utils

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxHostLength is the longest DNS name
const MaxHostLength = 253

// HostnamePattern matches RFC 1123 host names
var HostnamePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

// ValidateString validates a string field
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateHostAddress accepts a host name or IP address with an optional
// port. IPv6 addresses with a port must be bracketed.
func ValidateHostAddress(address string) error {
	if err := ValidateString(address, "host", 1, MaxHostLength, true); err != nil {
		return err
	}

	host := address
	if h, port, err := net.SplitHostPort(address); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("host port %q is invalid", port)
		}
		host = h
	}

	if net.ParseIP(host) != nil {
		return nil
	}
	if !HostnamePattern.MatchString(host) {
		return fmt.Errorf("host %q is not a valid host name or IP address", address)
	}
	return nil
}

// ValidateAppID rejects ids no host assigns
func ValidateAppID(id int) error {
	if id <= 0 {
		return fmt.Errorf("app_id must be positive, got %d", id)
	}
	return nil
}
