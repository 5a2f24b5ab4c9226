// Package bridge carries Store operations between the billing application
// and the host process that owns the database. Every operation is one
// connect unary procedure using a JSON codec.
package bridge

import (
	"net/http"
	"strings"
)

// ServiceName is the fully-qualified name of the host service.
const ServiceName = "meterbill.v1.HostService"

// Procedure paths of the host service.
const (
	GetCustomersProcedure        = "/" + ServiceName + "/GetCustomers"
	AddCustomerProcedure         = "/" + ServiceName + "/AddCustomer"
	UpdateCustomerProcedure      = "/" + ServiceName + "/UpdateCustomer"
	DeleteCustomerProcedure      = "/" + ServiceName + "/DeleteCustomer"
	GetBillsProcedure            = "/" + ServiceName + "/GetBills"
	AddBillProcedure             = "/" + ServiceName + "/AddBill"
	UpdateBillProcedure          = "/" + ServiceName + "/UpdateBill"
	MarkBillPaidProcedure        = "/" + ServiceName + "/MarkBillPaid"
	DeleteBillProcedure          = "/" + ServiceName + "/DeleteBill"
	DeleteCustomerBillsProcedure = "/" + ServiceName + "/DeleteCustomerBills"
	GetSettingsProcedure         = "/" + ServiceName + "/GetSettings"
	UpdateSettingsProcedure      = "/" + ServiceName + "/UpdateSettings"
	ReplaceAllProcedure          = "/" + ServiceName + "/ReplaceAll"
	PingProcedure                = "/" + ServiceName + "/Ping"
)

// Channels maps the host channel names to procedure paths.
var Channels = map[string]string{
	"get-customers":         GetCustomersProcedure,
	"add-customer":          AddCustomerProcedure,
	"update-customer":       UpdateCustomerProcedure,
	"delete-customer":       DeleteCustomerProcedure,
	"get-bills":             GetBillsProcedure,
	"add-bill":              AddBillProcedure,
	"update-bill":           UpdateBillProcedure,
	"mark-bill-paid":        MarkBillPaidProcedure,
	"delete-bill":           DeleteBillProcedure,
	"delete-customer-bills": DeleteCustomerBillsProcedure,
	"get-settings":          GetSettingsProcedure,
	"update-settings":       UpdateSettingsProcedure,
	"replace-all":           ReplaceAllProcedure,
	"ping":                  PingProcedure,
}

// ChannelPrefix is where ChannelHandler serves procedures by channel name.
const ChannelPrefix = "/ipc/"

// ChannelHandler serves the host procedures under ChannelPrefix+<channel>,
// so a caller can address them by channel name. Unknown channels get 404.
func ChannelHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		procedure, ok := Channels[strings.TrimPrefix(r.URL.Path, ChannelPrefix)]
		if !ok {
			http.NotFound(w, r)
			return
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = procedure
		r2.URL.RawPath = ""
		next.ServeHTTP(w, r2)
	})
}
