package ui

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number groups digits the way the English locale does, e.g. 12,345.
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

func Coins(n int64) string {
	return IconCoin + " " + Number(n)
}

// Percent formats a whole percentage.
func Percent(p int) string {
	return printer.Sprintf("%d%%", p)
}
