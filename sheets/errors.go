package sheets

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/api/googleapi"

	"github.com/velmie/syncpipe"
)

var (
	// ErrSpreadsheetRequired is returned when no spreadsheet id is configured.
	ErrSpreadsheetRequired = errors.New("syncpipe sheets: spreadsheet id is required")
	// ErrServiceRequired is returned when a nil *sheets.Service is provided.
	ErrServiceRequired = errors.New("syncpipe sheets: service is required")
	// ErrUnknownKind is returned for payloads without a row layout.
	ErrUnknownKind = errors.New("syncpipe sheets: unknown request kind")
)

// classify maps an API call error onto a syncpipe error kind.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return syncpipe.NewSyncError(syncpipe.KindAuth, err)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return syncpipe.NewSyncError(syncpipe.KindService, err)
		case apiErr.Code >= http.StatusBadRequest:
			return syncpipe.NewSyncError(syncpipe.KindPayload, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return syncpipe.NewSyncError(syncpipe.KindNetwork, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return syncpipe.NewSyncError(syncpipe.KindNetwork, err)
	}

	return syncpipe.NewSyncError(syncpipe.KindUnknown, err)
}
