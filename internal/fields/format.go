package fields

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// currencyPrinter formats amounts the way the intake screens show them (pt-BR)
var currencyPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount as "R$ 1.234,56"
func FormatBRL(amount float64) string {
	return currencyPrinter.Sprintf("R$ %.2f", amount)
}
