package money

import "strings"

// ISO 4217 codes grouped by the number of digits after the decimal point.
const (
	zeroDecimalCodes  = "BIF CLP DJF GNF ISK JPY KMF KRW PYG RWF UGX VND VUV XAF XOF XPF"
	threeDecimalCodes = "BHD IQD JOD KWD LYD OMR TND"
	twoDecimalCodes   = "AED AFN ALL AMD ANG AOA ARS AUD AWG AZN BAM BBD BDT BGN BMD BND BOB BRL " +
		"BSD BTN BWP BYN BZD CAD CDF CHF CNY COP CRC CUP CVE CZK DKK DOP DZD EGP ERN ETB EUR FJD " +
		"FKP GBP GEL GHS GIP GMD GTQ GYD HKD HNL HRK HTG HUF IDR ILS INR IRR JMD KES KGS KHR KPW " +
		"KYD KZT LAK LBP LKR LRD LSL MAD MDL MGA MKD MMK MNT MOP MRU MUR MVR MWK MXN MYR MZN NAD " +
		"NGN NIO NOK NPR NZD PAB PEN PGK PHP PKR PLN QAR RON RSD RUB SAR SBD SCR SDG SEK SGD SHP " +
		"SLE SOS SRD SSP STN SVC SYP SZL THB TJS TMT TOP TRY TTD TWD TZS UAH USD UYU UZS VES WST " +
		"XCD YER ZAR ZMW ZWL"
)

var currencyExponents = buildExponents()

func buildExponents() map[string]int {
	out := make(map[string]int)
	for exp, codes := range map[int]string{0: zeroDecimalCodes, 2: twoDecimalCodes, 3: threeDecimalCodes} {
		for _, code := range strings.Fields(codes) {
			out[code] = exp
		}
	}
	return out
}

// IsCurrency reports whether code is a known ISO 4217 currency code.
func IsCurrency(code string) bool {
	_, ok := currencyExponents[code]
	return ok
}

// DecimalPlaces returns the customary number of decimal places for code.
func DecimalPlaces(code string) (int, bool) {
	exp, ok := currencyExponents[strings.ToUpper(code)]
	return exp, ok
}
