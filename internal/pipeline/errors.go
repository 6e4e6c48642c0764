package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSourceInactive marks a dispatch against a source whose is_active flag is
// off. Reactivate the source and dispatch again.
var ErrSourceInactive = errors.New("source is inactive")

// UnsupportedModuleError marks a module name with no registered handler. The
// message lists what is registered so an operator can spot the typo or the
// missing wiring.
type UnsupportedModuleError struct {
	Kind      string // "scraper" or "analyzer"
	Module    string
	Available []string
}

func (e *UnsupportedModuleError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no %s registered for module %q (none are registered)", e.Kind, e.Module)
	}
	return fmt.Sprintf("no %s registered for module %q, available: %s",
		e.Kind, e.Module, strings.Join(e.Available, ", "))
}

// ModuleError wraps a failure raised inside a scraper or analyzer. Unwrap
// exposes the original error to errors.Is/As.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
