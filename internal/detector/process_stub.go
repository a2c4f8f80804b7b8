//go:build !darwin && !linux && !windows

package detector

import "fmt"

// NewSystemLister returns a lister that always fails on unsupported
// platforms; the detector reports NotFound.
func NewSystemLister() Lister {
	return ListerFunc(func() ([]Process, error) {
		return nil, fmt.Errorf("%w: process enumeration not supported on this platform", ErrEnumeration)
	})
}
