// Package classify scans a music library directory and produces the ordered
// list of album work units a batch run dispatches.
//
// Leaf directories become single units. Sibling disc folders (CD1, Disc 2,
// "Disc 3 - Bonus") are merged into one multi-disc unit rooted at their parent
// when at least two of them exist; a lone disc folder stays a single unit.
// Hidden directories and configured ignore globs are pruned from every scan.
package classify
