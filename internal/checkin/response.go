package checkin

import (
	"gatescan/internal/models"
)

// Status of one validation pass.
type Status string

const (
	StatusRedeemed   Status = "redeemed"
	StatusIncomplete Status = "incomplete"
	StatusError      Status = "error"
)

// Reason enumerates the domain rejections. These are outcomes shown to the
// operator, not system errors.
type Reason string

const (
	ReasonNoKeys          Reason = "no_keys"
	ReasonRevoked         Reason = "revoked"
	ReasonBlocked         Reason = "blocked"
	ReasonInvalid         Reason = "invalid"
	ReasonProduct         Reason = "product"
	ReasonInvalidSubEvent Reason = "invalid_product_subevent"
	ReasonAmbiguous       Reason = "ambiguous"
	ReasonCanceled        Reason = "canceled"
	ReasonUnpaid          Reason = "unpaid"
	ReasonAlreadyRedeemed Reason = "already_redeemed"
	ReasonRules           Reason = "rules"
	ReasonInvalidTime     Reason = "invalid_time"
	ReasonParsingError    Reason = "parsing_error"
)

// Response is the outcome of one validation pass. Exactly one is produced
// per call; it is returned to the caller and never persisted.
type Response struct {
	Status           Status                `json:"status"`
	Reason           Reason                `json:"reason,omitempty"`
	Detail           string                `json:"detail,omitempty"`
	RequireAttention bool                  `json:"require_attention,omitempty"`
	Position         *models.OrderPosition `json:"position,omitempty"`
	Questions        []*models.Question    `json:"questions,omitempty"`
	LastCheckIn      *models.CheckInRecord `json:"last_checkin,omitempty"`
}

func reject(reason Reason) *Response {
	return &Response{Status: StatusError, Reason: reason}
}

func rejectDetail(reason Reason, detail string) *Response {
	return &Response{Status: StatusError, Reason: reason, Detail: detail}
}
