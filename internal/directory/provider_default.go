//go:build !protogen

package directory

import (
	"context"

	"github.com/w-lukawski/gabinet/internal/qualification"
	"github.com/w-lukawski/gabinet/internal/storage"
)

// Provider resolves treatments and employee qualification profiles. The
// local storage tables satisfy it; a remote directory service can replace
// them when the generated client is built in.
type Provider interface {
	GetTreatment(ctx context.Context, orgID, treatmentID string) (storage.Treatment, error)
	QualificationProfile(ctx context.Context, orgID, employeeID string) (*qualification.Profile, error)
}

// NewRemoteProvider is a stub without generated gRPC clients; callers fall
// back to the local tables.
func NewRemoteProvider(_ string) (Provider, error) {
	return nil, nil
}
