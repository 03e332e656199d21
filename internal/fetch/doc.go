// Package fetch retrieves artifact archives from the configured upstream
// location template and unpacks them into a staging directory. Every failure
// is classified as a *Error with a Kind so that callers can tell an upstream
// "not found" apart from transfer problems and from broken archives without
// inspecting messages produced by the HTTP, compression or tar layers.
package fetch
