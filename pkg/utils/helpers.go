// Package utils provides small generic helpers shared across the sidecar.
package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NullEthereumAddressHex is the zero address with the 0x prefix
const NullEthereumAddressHex = "0x0000000000000000000000000000000000000000"

// AreAddressesEqual compares two hex addresses, ignoring case.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// IsNullAddress reports whether the address is the zero address.
func IsNullAddress(a common.Address) bool {
	return a == (common.Address{})
}

// Map applies f to every element of s, passing the element index.
func Map[A any, B any](s []A, f func(A, uint64) B) []B {
	out := make([]B, 0, len(s))
	for i, v := range s {
		out = append(out, f(v, uint64(i)))
	}
	return out
}

// Filter returns the elements of s for which f returns true.
func Filter[A any](s []A, f func(A) bool) []A {
	out := make([]A, 0)
	for _, v := range s {
		if f(v) {
			out = append(out, v)
		}
	}
	return out
}

// Find returns the first element of s for which f returns true, or the zero value.
func Find[A any](s []A, f func(A) bool) A {
	for _, v := range s {
		if f(v) {
			return v
		}
	}
	var zero A
	return zero
}

// ParseStringAsList splits a comma separated value, trimming whitespace and dropping empty entries.
func ParseStringAsList(value string) []string {
	if value == "" {
		return []string{}
	}
	l := make([]string, 0)
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			l = append(l, s)
		}
	}
	return l
}
