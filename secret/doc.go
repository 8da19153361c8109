// Package secret resolves credentials referenced from configuration.
//
// Config values may use strict environment expansion (${VAR} must be set)
// and secret references of the form
//
//	secretref:<provider>:<ref>
//
// either as the whole value or inline. The env provider reads an
// environment variable and the file provider reads a mounted secret file,
// trimming the trailing newline.
package secret
