//go:build !debug

package core

const diagnosticsDefault = false
