//go:build !debug

package format

// assertInvariants makes formatter invariant violations panic.  Release
// builds log the violation and degrade to plain text instead.
const assertInvariants = false
