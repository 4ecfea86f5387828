package outputhandler

import (
	"errors"

	"github.com/CycloneDX/cyclonedx-go"

	"github.com/andreycha/cyclonedx-dotnet/pkg/api/types"
)

type OutputHandler interface {
	HandleBOM(*cyclonedx.BOM) error
	HandleWarnings([]types.Warning) error
	Close() error
}

// Multi fans every call out to each handler in order.
func Multi(handlers ...OutputHandler) OutputHandler {
	return multi(handlers)
}

type multi []OutputHandler

func (m multi) HandleBOM(b *cyclonedx.BOM) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.HandleBOM(b))
	}
	return errors.Join(errs...)
}

func (m multi) HandleWarnings(w []types.Warning) error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.HandleWarnings(w))
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, h := range m {
		errs = append(errs, h.Close())
	}
	return errors.Join(errs...)
}
