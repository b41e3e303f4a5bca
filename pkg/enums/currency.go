package enums

// Currency is the lowercase ISO 4217 code the payment gateway charges in.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyGBP Currency = "gbp"
)

var currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return known(currencies, c) }

// ParseCurrency ignores case, so "USD" and "usd" are the same currency.
func ParseCurrency(value string) (Currency, error) {
	return parse(currencies, value, "currency")
}
