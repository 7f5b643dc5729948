package enums

// PaymentMethodType identifies how a saved payment method charges.
type PaymentMethodType string

const (
	PaymentMethodCreditCard   PaymentMethodType = "credit_card"
	PaymentMethodPaypal       PaymentMethodType = "paypal"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
)

var paymentMethodTypes = newValueSet("payment method type",
	PaymentMethodCreditCard, PaymentMethodPaypal, PaymentMethodBankTransfer,
)

func (p PaymentMethodType) String() string { return string(p) }

func (p PaymentMethodType) IsValid() bool { return paymentMethodTypes.has(p) }

func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	return paymentMethodTypes.parse(value)
}
