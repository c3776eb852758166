package checkout

import "net/http"

// Kind is the terminal state of a checkout attempt.
type Kind string

const (
	Success   Kind = "success"
	Rejected  Kind = "rejected"
	Declined  Kind = "declined"
	Redundant Kind = "redundant"
	Fatal     Kind = "fatal"
)

// Reasons are stable machine readable failure codes.
const (
	ReasonBasketNotFound      = "basket_not_found"
	ReasonInvalidRequest      = "invalid_request"
	ReasonUnknownProcessor    = "unknown_processor"
	ReasonPaymentDeclined     = "payment_declined"
	ReasonRedundantPayment    = "redundant_payment"
	ReasonAlreadyOrdered      = "already_ordered"
	ReasonBasketLocked        = "basket_locked"
	ReasonPaymentFailed       = "payment_failed"
	ReasonOrderCreationFailed = "order_creation_failed"
	ReasonOffersUnavailable   = "offers_unavailable"
	ReasonInternalError       = "internal_error"
)

// Outcome is the result of Pipeline.Place. OrderNumber is set on Success.
type Outcome struct {
	Kind        Kind
	Reason      string
	OrderNumber string
	Err         error
}

func (o Outcome) HTTPStatus() int {
	switch o.Kind {
	case Success:
		return http.StatusOK
	case Rejected, Declined:
		return http.StatusBadRequest
	case Redundant:
		return http.StatusConflict
	}
	switch o.Reason {
	case ReasonAlreadyOrdered, ReasonBasketLocked:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func succeeded(number string) Outcome {
	return Outcome{Kind: Success, OrderNumber: number}
}

func failed(kind Kind, reason string, err error) Outcome {
	return Outcome{Kind: kind, Reason: reason, Err: err}
}
