//go:build prodonly

package auth

const DevLoginCompiledIn = false
