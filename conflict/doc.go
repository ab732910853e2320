// Package conflict decides what happens when a generated output would
// overwrite a file whose content differs.
//
// Four strategies exist: force (overwrite, the default), skip (keep the file
// on disk), diff (print the diff, then ask) and interactive (ask, with the
// diff one key away). Menus and the diff pager are bubbletea programs.
//
//	r, err := conflict.New(conflict.StrategyInteractive)
//	res, err := r.Resolve(path, onDisk, generated)
//
// Diff renders a unified, lipgloss-styled diff computed with Myers'
// algorithm; plan output uses it with Plain set.
package conflict
