//go:build protogen

package directory

import (
	"context"
	"time"

	"github.com/w-lukawski/gabinet/internal/qualification"
	"github.com/w-lukawski/gabinet/internal/storage"
	"github.com/w-lukawski/gabinet/libs/grpcx"
	directoryv1 "github.com/w-lukawski/gabinet/protos/gen/directory/v1"
)

// Provider resolves treatments and employee qualification profiles. The
// local storage tables satisfy it; a remote directory service can replace
// them when the generated client is built in.
type Provider interface {
	GetTreatment(ctx context.Context, orgID, treatmentID string) (storage.Treatment, error)
	QualificationProfile(ctx context.Context, orgID, employeeID string) (*qualification.Profile, error)
}

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

func NewRemoteProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) GetTreatment(ctx context.Context, orgID, treatmentID string) (storage.Treatment, error) {
	resp, err := p.client.GetTreatment(ctx, &directoryv1.GetTreatmentRequest{
		OrgId:       orgID,
		TreatmentId: treatmentID,
	})
	if err != nil {
		return storage.Treatment{}, err
	}
	return storage.Treatment{
		ID:              resp.GetId(),
		OrgID:           orgID,
		Name:            resp.GetName(),
		DurationMinutes: int(resp.GetDurationMinutes()),
		Price:           resp.GetPrice(),
		Active:          resp.GetActive(),
	}, nil
}

func (p *grpcProvider) QualificationProfile(ctx context.Context, orgID, employeeID string) (*qualification.Profile, error) {
	resp, err := p.client.GetEmployeeProfile(ctx, &directoryv1.GetEmployeeProfileRequest{
		OrgId:      orgID,
		EmployeeId: employeeID,
	})
	if err != nil {
		return nil, err
	}
	if !resp.GetFound() {
		return nil, nil
	}
	return &qualification.Profile{
		EmployeeID:   employeeID,
		Active:       resp.GetActive(),
		TreatmentIDs: resp.GetTreatmentIds(),
	}, nil
}
