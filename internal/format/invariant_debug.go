//go:build debug

package format

const assertInvariants = true
