//go:build windows

package hotkey

import "golang.design/x/hotkey"

var modifierMap = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.ModAlt,
	ModSuper: hotkey.ModWin,
}
