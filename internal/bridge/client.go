package bridge

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/meterbill/internal/models"
	"github.com/mmynk/meterbill/internal/storage"
)

var _ storage.Store = (*Client)(nil)

// Client is a Store backed by a remote host service.
type Client struct {
	getCustomers        *connect.Client[Empty, CustomersResponse]
	addCustomer         *connect.Client[models.Customer, Empty]
	updateCustomer      *connect.Client[models.Customer, Empty]
	deleteCustomer      *connect.Client[IDRequest, Empty]
	getBills            *connect.Client[Empty, BillsResponse]
	addBill             *connect.Client[models.Bill, Empty]
	updateBill          *connect.Client[models.Bill, Empty]
	markBillPaid        *connect.Client[IDRequest, Empty]
	deleteBill          *connect.Client[IDRequest, Empty]
	deleteCustomerBills *connect.Client[IDRequest, Empty]
	getSettings         *connect.Client[Empty, models.Settings]
	updateSettings      *connect.Client[models.Settings, Empty]
	replaceAll          *connect.Client[models.Snapshot, Empty]
	ping                *connect.Client[Empty, PingResponse]
}

// NewClient creates a bridge client for the host at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &Client{
		getCustomers:        connect.NewClient[Empty, CustomersResponse](httpClient, baseURL+GetCustomersProcedure, opts...),
		addCustomer:         connect.NewClient[models.Customer, Empty](httpClient, baseURL+AddCustomerProcedure, opts...),
		updateCustomer:      connect.NewClient[models.Customer, Empty](httpClient, baseURL+UpdateCustomerProcedure, opts...),
		deleteCustomer:      connect.NewClient[IDRequest, Empty](httpClient, baseURL+DeleteCustomerProcedure, opts...),
		getBills:            connect.NewClient[Empty, BillsResponse](httpClient, baseURL+GetBillsProcedure, opts...),
		addBill:             connect.NewClient[models.Bill, Empty](httpClient, baseURL+AddBillProcedure, opts...),
		updateBill:          connect.NewClient[models.Bill, Empty](httpClient, baseURL+UpdateBillProcedure, opts...),
		markBillPaid:        connect.NewClient[IDRequest, Empty](httpClient, baseURL+MarkBillPaidProcedure, opts...),
		deleteBill:          connect.NewClient[IDRequest, Empty](httpClient, baseURL+DeleteBillProcedure, opts...),
		deleteCustomerBills: connect.NewClient[IDRequest, Empty](httpClient, baseURL+DeleteCustomerBillsProcedure, opts...),
		getSettings:         connect.NewClient[Empty, models.Settings](httpClient, baseURL+GetSettingsProcedure, opts...),
		updateSettings:      connect.NewClient[models.Settings, Empty](httpClient, baseURL+UpdateSettingsProcedure, opts...),
		replaceAll:          connect.NewClient[models.Snapshot, Empty](httpClient, baseURL+ReplaceAllProcedure, opts...),
		ping:                connect.NewClient[Empty, PingResponse](httpClient, baseURL+PingProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], op string, req *Req) (*Res, error) {
	res, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fromConnectError(op, err)
	}
	return res.Msg, nil
}

// Ping checks that the host is reachable and returns the backend it serves.
func (c *Client) Ping(ctx context.Context) (string, error) {
	res, err := call(ctx, c.ping, "ping host", &Empty{})
	if err != nil {
		return "", err
	}
	return res.Backend, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	res, err := call(ctx, c.getCustomers, "list customers", &Empty{})
	if err != nil {
		return nil, err
	}
	if res.Customers == nil {
		return []models.Customer{}, nil
	}
	return res.Customers, nil
}

func (c *Client) InsertCustomer(ctx context.Context, customer models.Customer) error {
	_, err := call(ctx, c.addCustomer, "insert customer", &customer)
	return err
}

func (c *Client) UpdateCustomer(ctx context.Context, customer models.Customer) error {
	_, err := call(ctx, c.updateCustomer, "update customer", &customer)
	return err
}

func (c *Client) RemoveCustomer(ctx context.Context, id string) error {
	_, err := call(ctx, c.deleteCustomer, "remove customer", &IDRequest{ID: id})
	return err
}

func (c *Client) ListBills(ctx context.Context) ([]models.Bill, error) {
	res, err := call(ctx, c.getBills, "list bills", &Empty{})
	if err != nil {
		return nil, err
	}
	if res.Bills == nil {
		return []models.Bill{}, nil
	}
	return res.Bills, nil
}

func (c *Client) InsertBill(ctx context.Context, bill models.Bill) error {
	_, err := call(ctx, c.addBill, "insert bill", &bill)
	return err
}

func (c *Client) UpdateBill(ctx context.Context, bill models.Bill) error {
	_, err := call(ctx, c.updateBill, "update bill", &bill)
	return err
}

func (c *Client) RemoveBill(ctx context.Context, id string) error {
	_, err := call(ctx, c.deleteBill, "remove bill", &IDRequest{ID: id})
	return err
}

func (c *Client) RemoveBillsForCustomer(ctx context.Context, customerID string) error {
	_, err := call(ctx, c.deleteCustomerBills, "remove customer bills", &IDRequest{ID: customerID})
	return err
}

func (c *Client) SetBillPaid(ctx context.Context, id string) error {
	_, err := call(ctx, c.markBillPaid, "set bill paid", &IDRequest{ID: id})
	return err
}

func (c *Client) ReadSettings(ctx context.Context) (models.Settings, error) {
	res, err := call(ctx, c.getSettings, "read settings", &Empty{})
	if err != nil {
		return models.Settings{}, err
	}
	return *res, nil
}

func (c *Client) WriteSettings(ctx context.Context, settings models.Settings) error {
	_, err := call(ctx, c.updateSettings, "write settings", &settings)
	return err
}

func (c *Client) ReplaceAll(ctx context.Context, snapshot models.Snapshot) error {
	_, err := call(ctx, c.replaceAll, "replace all", &snapshot)
	return err
}

// Close is a no-op; the host owns the database.
func (c *Client) Close() error {
	return nil
}
