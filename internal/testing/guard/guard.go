// Package guard flips the binaries into test mode. Import it for side effects
// from tests that touch cmd/ or internal/app.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LUMEN_TEST_MODE") == "" {
			_ = os.Setenv("LUMEN_TEST_MODE", "1")
		}
	})
}
