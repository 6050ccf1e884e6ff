package sheets

import (
	"fmt"
	"time"

	"github.com/velmie/syncpipe"
)

const (
	dateLayout      = "2006-01-02 15:04:05"
	isoLayout       = "2006-01-02T15:04:05"
	isoMicrosLayout = "2006-01-02T15:04:05.000000"
)

// Row renders a payload in the column layout of its request kind.
//
// Item requests: created (local time), item name, description, image url, request id, item id.
// Equipment requests: equipment id, description, request date (UTC, no zone, microseconds
// only when non-zero), status.
func Row(p syncpipe.Payload, loc *time.Location) ([]any, error) {
	switch p.Kind {
	case syncpipe.KindItemRequest:
		if loc == nil {
			loc = time.UTC
		}

		return []any{
			p.CreatedAt.In(loc).Format(dateLayout),
			p.ItemName,
			p.Description,
			p.ImageURL,
			p.ID,
			p.ItemID,
		}, nil
	case syncpipe.KindEquipmentRequest:
		return []any{
			p.ItemID,
			p.Description,
			isoDate(p.CreatedAt),
			p.Status,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, p.Kind)
	}
}

// isoDate renders t the way existing equipment rows were written: zoneless UTC with
// six fractional digits only when microseconds are present.
func isoDate(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(isoLayout)
	}

	return t.Format(isoMicrosLayout)
}
