// Package preflight provides readiness checks for the filesystem paths and
// external command a batch run depends on.
//
// The "albumrun doctor" command renders RunAll. The run command uses
// CheckReadableDirectory on the library root and the command check so a
// missing binary is reported once up front instead of as a failure per unit.
package preflight
