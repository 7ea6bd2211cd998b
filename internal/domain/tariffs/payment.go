package tariffs

import (
	"errors"
	"strings"
)

var ErrUnknownPaymentMethod = errors.New("tariffs: unknown payment method")

// PaymentMethod splits prices between instant transfers and card payments.
type PaymentMethod string

const (
	PaymentPix  PaymentMethod = "PIX"
	PaymentCard PaymentMethod = "CARD"
)

func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentPix, PaymentCard}
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pix", "instant", "cash":
		return PaymentPix, nil
	case "card", "credit", "credit_card", "cartao":
		return PaymentCard, nil
	}
	return "", ErrUnknownPaymentMethod
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentPix || m == PaymentCard
}

func (m PaymentMethod) String() string {
	return string(m)
}
