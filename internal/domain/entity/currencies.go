package entity

// DefaultBase is used whenever a caller does not name a base currency
const DefaultBase = "USD"

// CurrencyInfo describes a currency known to the service
type CurrencyInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var currencyCatalogue = []CurrencyInfo{
	{Code: "USD", Name: "US Dollar"},
	{Code: "EUR", Name: "Euro"},
	{Code: "GBP", Name: "British Pound Sterling"},
	{Code: "JPY", Name: "Japanese Yen"},
	{Code: "AUD", Name: "Australian Dollar"},
	{Code: "CAD", Name: "Canadian Dollar"},
	{Code: "CHF", Name: "Swiss Franc"},
	{Code: "CNY", Name: "Chinese Yuan"},
	{Code: "SEK", Name: "Swedish Krona"},
	{Code: "NZD", Name: "New Zealand Dollar"},
	{Code: "MXN", Name: "Mexican Peso"},
	{Code: "SGD", Name: "Singapore Dollar"},
	{Code: "HKD", Name: "Hong Kong Dollar"},
	{Code: "NOK", Name: "Norwegian Krone"},
	{Code: "INR", Name: "Indian Rupee"},
	{Code: "KRW", Name: "South Korean Won"},
	{Code: "TRY", Name: "Turkish Lira"},
	{Code: "RUB", Name: "Russian Ruble"},
	{Code: "BRL", Name: "Brazilian Real"},
	{Code: "ZAR", Name: "South African Rand"},
}

var currencyNames = func() map[string]string {
	names := make(map[string]string, len(currencyCatalogue))
	for _, c := range currencyCatalogue {
		names[c.Code] = c.Name
	}
	return names
}()

// MajorCurrencies are the bases refreshed and broadcast by default
var MajorCurrencies = []string{"USD", "EUR", "GBP", "JPY", "AUD", "CAD", "CHF", "CNY"}

// DisplayName returns the display name for a currency code, or the code itself when unknown
func DisplayName(code string) string {
	if name, ok := currencyNames[code]; ok {
		return name
	}
	return code
}

// SupportedCurrencies returns the catalogue codes in display order
func SupportedCurrencies() []string {
	codes := make([]string, len(currencyCatalogue))
	for i, c := range currencyCatalogue {
		codes[i] = c.Code
	}
	return codes
}
