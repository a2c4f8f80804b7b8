//go:build darwin

package detector

import (
	"github.com/progrium/darwinkit/macos/appkit"
)

// workspaceLister reads running applications from NSWorkspace. NSWorkspace
// exposes no PIDs through this path, so enumeration order stands in for PID
// order; it is stable for a given application list.
type workspaceLister struct {
	workspace appkit.Workspace
}

// NewSystemLister returns the macOS process table.
func NewSystemLister() Lister {
	return &workspaceLister{workspace: appkit.Workspace_SharedWorkspace()}
}

// Processes lists running applications by localized name, plus their bundle
// identifier as a second entry so either can be matched.
func (l *workspaceLister) Processes() ([]Process, error) {
	apps := l.workspace.RunningApplications()

	procs := make([]Process, 0, len(apps)*2)
	for i, app := range apps {
		if app.Ptr() == nil {
			continue
		}
		if name := app.LocalizedName(); name != "" {
			procs = append(procs, Process{PID: i * 2, Name: name})
		}
		if bundleID := app.BundleIdentifier(); bundleID != "" {
			procs = append(procs, Process{PID: i*2 + 1, Name: bundleID})
		}
	}
	return procs, nil
}
