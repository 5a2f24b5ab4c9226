package bridge

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

// HostService exposes a Store to bridge clients.
type HostService struct {
	store   storage.Store
	backend string
}

// NewHostService creates a host service over store. backend names the store
// kind reported by Ping.
func NewHostService(store storage.Store, backend string) *HostService {
	return &HostService{store: store, backend: backend}
}

// NewHostServiceHandler builds an HTTP handler serving every host procedure.
// It returns the path prefix on which to mount the handler.
func NewHostServiceHandler(svc *HostService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	handle(mux, GetCustomersProcedure, svc.GetCustomers, opts)
	handle(mux, AddCustomerProcedure, svc.AddCustomer, opts)
	handle(mux, UpdateCustomerProcedure, svc.UpdateCustomer, opts)
	handle(mux, DeleteCustomerProcedure, svc.DeleteCustomer, opts)
	handle(mux, GetBillsProcedure, svc.GetBills, opts)
	handle(mux, AddBillProcedure, svc.AddBill, opts)
	handle(mux, UpdateBillProcedure, svc.UpdateBill, opts)
	handle(mux, MarkBillPaidProcedure, svc.MarkBillPaid, opts)
	handle(mux, DeleteBillProcedure, svc.DeleteBill, opts)
	handle(mux, DeleteCustomerBillsProcedure, svc.DeleteCustomerBills, opts)
	handle(mux, GetSettingsProcedure, svc.GetSettings, opts)
	handle(mux, UpdateSettingsProcedure, svc.UpdateSettings, opts)
	handle(mux, ReplaceAllProcedure, svc.ReplaceAll, opts)
	handle(mux, PingProcedure, svc.Ping, opts)

	return "/" + ServiceName + "/", mux
}

func handle[Req, Res any](mux *http.ServeMux, procedure string, fn func(context.Context, *Req) (*Res, error), opts []connect.HandlerOption) {
	mux.Handle(procedure, connect.NewUnaryHandler(
		procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	))
}

func (s *HostService) GetCustomers(ctx context.Context, _ *Empty) (*CustomersResponse, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return &CustomersResponse{Customers: customers}, nil
}

func (s *HostService) AddCustomer(ctx context.Context, customer *models.Customer) (*Empty, error) {
	return &Empty{}, s.store.InsertCustomer(ctx, *customer)
}

func (s *HostService) UpdateCustomer(ctx context.Context, customer *models.Customer) (*Empty, error) {
	return &Empty{}, s.store.UpdateCustomer(ctx, *customer)
}

func (s *HostService) DeleteCustomer(ctx context.Context, req *IDRequest) (*Empty, error) {
	return &Empty{}, s.store.RemoveCustomer(ctx, req.ID)
}

func (s *HostService) GetBills(ctx context.Context, _ *Empty) (*BillsResponse, error) {
	bills, err := s.store.ListBills(ctx)
	if err != nil {
		return nil, err
	}
	return &BillsResponse{Bills: bills}, nil
}

func (s *HostService) AddBill(ctx context.Context, bill *models.Bill) (*Empty, error) {
	return &Empty{}, s.store.InsertBill(ctx, *bill)
}

func (s *HostService) UpdateBill(ctx context.Context, bill *models.Bill) (*Empty, error) {
	return &Empty{}, s.store.UpdateBill(ctx, *bill)
}

func (s *HostService) MarkBillPaid(ctx context.Context, req *IDRequest) (*Empty, error) {
	return &Empty{}, s.store.SetBillPaid(ctx, req.ID)
}

func (s *HostService) DeleteBill(ctx context.Context, req *IDRequest) (*Empty, error) {
	return &Empty{}, s.store.RemoveBill(ctx, req.ID)
}

func (s *HostService) DeleteCustomerBills(ctx context.Context, req *IDRequest) (*Empty, error) {
	return &Empty{}, s.store.RemoveBillsForCustomer(ctx, req.ID)
}

func (s *HostService) GetSettings(ctx context.Context, _ *Empty) (*models.Settings, error) {
	settings, err := s.store.ReadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *HostService) UpdateSettings(ctx context.Context, settings *models.Settings) (*Empty, error) {
	return &Empty{}, s.store.WriteSettings(ctx, *settings)
}

func (s *HostService) ReplaceAll(ctx context.Context, snap *models.Snapshot) (*Empty, error) {
	return &Empty{}, s.store.ReplaceAll(ctx, *snap)
}

func (s *HostService) Ping(_ context.Context, _ *Empty) (*PingResponse, error) {
	return &PingResponse{Backend: s.backend}, nil
}
