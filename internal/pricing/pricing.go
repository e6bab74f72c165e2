// Package pricing maps a customer's country to the order price.
package pricing

import "strings"

// Price is an amount in minor units with an ISO currency code.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Table holds the configured price per currency.
type Table struct {
	USD int64
	EUR int64
	GBP int64
}

var euroCountries = map[string]struct{}{
	"AT": {}, "BE": {}, "CY": {}, "DE": {}, "EE": {}, "ES": {}, "FI": {}, "FR": {},
	"GR": {}, "HR": {}, "IE": {}, "IT": {}, "LT": {}, "LU": {}, "LV": {}, "MT": {},
	"NL": {}, "PT": {}, "SI": {}, "SK": {},
}

// ForCountry returns the price for an ISO country code. Unknown or empty
// countries pay in USD.
func (t Table) ForCountry(country string) Price {
	country = strings.ToUpper(strings.TrimSpace(country))
	switch {
	case country == "GB" || country == "UK":
		if t.GBP > 0 {
			return Price{Amount: t.GBP, Currency: "GBP"}
		}
	case isEuro(country):
		if t.EUR > 0 {
			return Price{Amount: t.EUR, Currency: "EUR"}
		}
	}
	return Price{Amount: t.USD, Currency: "USD"}
}

func isEuro(country string) bool {
	_, ok := euroCountries[country]
	return ok
}
