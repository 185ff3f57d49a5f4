package memory

import (
	"testing"

	"github.com/cyface-de/cyup/internal/adapters/registrytest"
	"github.com/cyface-de/cyup/internal/ports"
)

func TestRegistry(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) ports.SessionRegistry {
		return NewRegistry()
	})
}
