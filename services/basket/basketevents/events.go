package basketevents

import "time"

const (
	TopicName            = "basket"
	basketCheckedOutName = TopicName + ".checkedout"
)

// BasketCheckedOut is published when a basket has been converted into a
// ledger debit. Downstream order-keeping consumes it.
type BasketCheckedOut struct {
	UserID       string
	OrderUID     string
	TotalPrice   int // cents
	CheckedOutAt time.Time
}

func (e BasketCheckedOut) GetEventTypeName() string {
	return basketCheckedOutName
}

func (e BasketCheckedOut) GetAggregateName() string {
	return e.UserID
}
