//go:build windows

package player

import (
	"fmt"
	"os"

	"github.com/desertthunder/tapedeck/internal/shared"
)

func suspend(*os.Process) error { return fmt.Errorf("%w: pause on windows", shared.ErrNotImplemented) }
func resume(*os.Process) error  { return fmt.Errorf("%w: resume on windows", shared.ErrNotImplemented) }
