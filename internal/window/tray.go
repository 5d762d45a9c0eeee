package window

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

// InstallTray adds a system tray menu when the driver supports one. fyne
// appends its own Quit item. It reports whether a tray was installed.
func InstallTray(a fyne.App, show, diagnostics func()) bool {
	desk, ok := a.(desktop.App)
	if !ok {
		return false
	}
	desk.SetSystemTrayMenu(fyne.NewMenu(MainTitle,
		fyne.NewMenuItem("Show Alice", show),
		fyne.NewMenuItem("Diagnostics", diagnostics),
	))
	return true
}
