// Package textutil provides filename sanitization helpers.
//
// SanitizeFileName turns arbitrary folder identifiers (artist/album paths,
// accented titles) into a single safe path segment; SanitizeToken produces a
// lowercase ASCII token for keys such as lock file names.
package textutil
