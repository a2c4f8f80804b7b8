//go:build windows

package detector

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// toolhelpLister walks a Toolhelp32 process snapshot.
type toolhelpLister struct{}

// NewSystemLister returns the Windows process table.
func NewSystemLister() Lister {
	return toolhelpLister{}
}

// Processes takes a new snapshot on each call.
func (toolhelpLister) Processes() ([]Process, error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %w", ErrEnumeration, err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		return nil, fmt.Errorf("%w: first entry: %w", ErrEnumeration, err)
	}

	var procs []Process
	for {
		procs = append(procs, Process{
			PID:  int(entry.ProcessID),
			Name: windows.UTF16ToString(entry.ExeFile[:]),
		})
		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, fmt.Errorf("%w: next entry: %w", ErrEnumeration, err)
		}
	}
	return procs, nil
}
