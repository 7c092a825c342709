//go:build !prodonly

package auth

// DevLoginCompiledIn is false for binaries built with the prodonly tag,
// which leaves no reachable password path.
const DevLoginCompiledIn = true
