package checkin

import (
	"strconv"

	"gatescan/internal/models"
)

// CheckSubEvent rejects when the list pins a subevent and the ticket names a
// different one.
func CheckSubEvent(list *models.CheckInList, subEventID int64) *Response {
	if list.SubEventID != 0 && subEventID != list.SubEventID {
		return rejectDetail(ReasonInvalidSubEvent, "subevent "+strconv.FormatInt(subEventID, 10))
	}
	return nil
}

// CheckProductScope rejects when the list covers an explicit product set and
// the ticket's item is not in it. The offending subevent travels in the
// detail for diagnostics.
func CheckProductScope(list *models.CheckInList, itemID, subEventID int64) *Response {
	if !list.HasItem(itemID) {
		return rejectDetail(ReasonProduct, "subevent "+strconv.FormatInt(subEventID, 10))
	}
	return nil
}

// SelectPosition resolves the position to admit. Without addon match this is
// the scanned position, still subject to product scope. With addon match the
// candidate set is the scanned position plus every position naming it as
// addon parent, filtered by the list's product scope and subevent pin: zero
// survivors reject on product grounds, more than one is ambiguous.
func SelectPosition(list *models.CheckInList, scanned *models.OrderPosition, addons []*models.OrderPosition) (*models.OrderPosition, *Response) {
	if !list.AddonMatch {
		if resp := CheckProductScope(list, scanned.ItemID, scanned.SubEventID); resp != nil {
			return nil, resp
		}
		return scanned, nil
	}

	candidates := make([]*models.OrderPosition, 0, 1+len(addons))
	for _, pos := range append([]*models.OrderPosition{scanned}, addons...) {
		if !list.HasItem(pos.ItemID) {
			continue
		}
		if list.SubEventID != 0 && pos.SubEventID != list.SubEventID {
			continue
		}
		candidates = append(candidates, pos)
	}

	switch len(candidates) {
	case 0:
		return nil, rejectDetail(ReasonProduct, "subevent "+strconv.FormatInt(scanned.SubEventID, 10))
	case 1:
		return candidates[0], nil
	default:
		return nil, reject(ReasonAmbiguous)
	}
}
