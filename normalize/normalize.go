/*
Package normalize corrects street names, phone numbers and house numbers.

The rules were derived from the values found in the Berlin extract and are
not meant as general purpose address normalization.
*/
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxRangeSize limits the number of house numbers a range like 1-5 expands to.
const MaxRangeSize = 1000

// Rules configures a Normalizer.
type Rules struct {
	// StreetMisspelling matches misspelled parts of street names.
	StreetMisspelling string
	// StreetReplacement replaces each StreetMisspelling match.
	StreetReplacement string
	// PhoneCountryCode is the calling code without + or 00 (49 for Germany).
	PhoneCountryCode string
	// PhoneLabel is a word some mappers put in front of the number
	// (phone=Telefon: 030...).
	PhoneLabel string
}

var DefaultRules = Rules{
	StreetMisspelling: `Chausee|Chausse($|\b)`,
	StreetReplacement: "Chaussee",
	PhoneCountryCode:  "49",
	PhoneLabel:        "Telefon",
}

type Normalizer struct {
	misspelling *regexp.Regexp
	replacement string

	countryCode string
	phoneNoise  *strings.Replacer
	phoneLabel  *regexp.Regexp
	phoneForms  []*regexp.Regexp
	intlPhone   *regexp.Regexp
}

// New compiles the rules. Returns an error for an invalid StreetMisspelling
// expression.
func New(rules Rules) (*Normalizer, error) {
	misspelling, err := regexp.Compile(rules.StreetMisspelling)
	if err != nil {
		return nil, err
	}
	cc := regexp.QuoteMeta(rules.PhoneCountryCode)
	n := &Normalizer{
		misspelling: misspelling,
		replacement: rules.StreetReplacement,
		countryCode: rules.PhoneCountryCode,
		// (0) before ( so that +49 (0)30 loses the trunk prefix
		phoneNoise: strings.NewReplacer(" ", "", "(0)", "", "(", "", ")", "", "-", "", "/", ""),
		// first match wins
		phoneForms: []*regexp.Regexp{
			regexp.MustCompile(`^00` + cc + `([0-9]+)`),
			regexp.MustCompile(`^\+` + cc + `0([0-9]+)`),
			regexp.MustCompile(`^` + cc + `([2-9][0-9]+)`),
			regexp.MustCompile(`^0([0-9]+)`),
		},
		intlPhone: regexp.MustCompile(`^\+` + cc + `[0-9]+`),
	}
	if rules.PhoneLabel != "" {
		n.phoneLabel = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(rules.PhoneLabel) + `[^0-9+]*(\+*[0-9]+)`)
	}
	return n, nil
}

var defaultNormalizer *Normalizer

func init() {
	var err error
	defaultNormalizer, err = New(DefaultRules)
	if err != nil {
		panic(err)
	}
}

// StreetName corrects misspellings with DefaultRules.
func StreetName(name string) string { return defaultNormalizer.StreetName(name) }

// PhoneNumber normalizes a phone number with DefaultRules.
func PhoneNumber(number string) string { return defaultNormalizer.PhoneNumber(number) }

// HouseNumber splits and normalizes a house number.
func HouseNumber(number string) []string { return defaultNormalizer.HouseNumber(number) }

// StreetName replaces all misspellings. Returns name unchanged if it
// contains no misspelling.
func (n *Normalizer) StreetName(name string) string {
	if !n.misspelling.MatchString(name) {
		return name
	}
	return n.misspelling.ReplaceAllLiteralString(name, n.replacement)
}

// MisspelledPart returns the first misspelled part of name, or "".
func (n *Normalizer) MisspelledPart(name string) string {
	return n.misspelling.FindString(name)
}

// CleanPhoneNumber removes all formatting from number, without any further
// normalization.
func (n *Normalizer) CleanPhoneNumber(number string) string {
	number = n.phoneNoise.Replace(number)
	dup := "+" + n.countryCode
	return strings.Replace(number, dup+dup, dup, -1)
}

// PhoneNumber returns number in the form +49301234567. Returns "" if the
// number is not recognized.
func (n *Normalizer) PhoneNumber(number string) string {
	number = n.CleanPhoneNumber(number)
	if n.phoneLabel != nil {
		if m := n.phoneLabel.FindStringSubmatch(number); m != nil {
			number = m[1]
		}
	}
	for _, form := range n.phoneForms {
		if m := form.FindStringSubmatch(number); m != nil {
			return "+" + n.countryCode + m[1]
		}
	}
	if n.intlPhone.MatchString(number) {
		return number
	}
	return ""
}

var (
	houseNumberRange = regexp.MustCompile(`^([0-9]+)-([0-9]+)`)
	houseNumberShape = regexp.MustCompile(`^(?:[A-Z][0-9]+|[0-9]+(?:$|[A-Z]|[-/,][0-9]+\s*))`)
	houseNumberClean = strings.NewReplacer(" ", "", ";", ",", "+", ",")
)

// HouseNumber returns the house numbers of number. Ranges like 4-6 are
// expanded, lists (4,6 or 4;6 or 4+6) are split. Returns an empty list for
// unrecognized numbers.
func (n *Normalizer) HouseNumber(number string) []string {
	number = houseNumberClean.Replace(strings.ToUpper(number))

	if m := houseNumberRange.FindStringSubmatch(number); m != nil {
		return expandRange(m[1], m[2])
	}
	if !houseNumberShape.MatchString(number) {
		return []string{}
	}
	if strings.Contains(number, ",") {
		return strings.Split(number, ",")
	}
	return []string{number}
}

func expandRange(from, to string) []string {
	start, err := strconv.Atoi(from)
	if err != nil {
		return []string{}
	}
	end, err := strconv.Atoi(to)
	if err != nil {
		return []string{}
	}
	if end < start || end-start >= MaxRangeSize {
		return []string{}
	}
	result := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		result = append(result, strconv.Itoa(i))
	}
	return result
}
