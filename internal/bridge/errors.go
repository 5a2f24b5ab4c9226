package bridge

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/mmynk/meterbill/internal/models"
)

// fieldMeta carries ValidationError.Field across the bridge.
const fieldMeta = "Meterbill-Field"

// toConnectError maps domain errors onto connect codes.
func toConnectError(err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		cerr := connect.NewError(connect.CodeInvalidArgument, errors.New(verr.Reason))
		cerr.Meta().Set(fieldMeta, verr.Field)
		return cerr
	case errors.Is(err, models.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, models.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// fromConnectError maps connect codes back onto domain errors. Transport
// failures and internal host errors become persistence errors.
func fromConnectError(op string, err error) error {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return models.NewPersistenceError(op, err)
	}

	switch cerr.Code() {
	case connect.CodeInvalidArgument:
		return models.NewValidationError(cerr.Meta().Get(fieldMeta), cerr.Message())
	case connect.CodeNotFound:
		return fmt.Errorf("%s: %w", cerr.Message(), models.ErrNotFound)
	}
	return models.NewPersistenceError(op, err)
}
