package config

import (
	"io/ioutil"
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Region contains all dataset specific rules: which elements belong to the
// extract and how values are corrected.
type Region struct {
	Name string `yaml:"name" validate:"required"`
	// Country is the addr:country code of elements inside the region.
	Country string `yaml:"country" validate:"omitempty,len=2,uppercase"`
	// ExcludedCountries drops all elements with one of these addr:country codes.
	ExcludedCountries []string `yaml:"excluded_countries" validate:"dive,len=2,uppercase"`
	// PostcodeMin and PostcodeMax define the range [min, max) of accepted
	// addr:postcode values.
	PostcodeMin int `yaml:"postcode_min" validate:"gte=0"`
	PostcodeMax int `yaml:"postcode_max" validate:"gtfield=PostcodeMin"`

	StreetMisspelling string `yaml:"street_misspelling" validate:"required"`
	StreetReplacement string `yaml:"street_replacement" validate:"required"`

	PhoneCountryCode string `yaml:"phone_country_code" validate:"required,numeric"`
	PhoneLabel       string `yaml:"phone_label" validate:"omitempty,alpha"`
}

// Berlin is the region the rules were developed for: the Berlin extract
// reaches into Poland and contains postcodes of Brandenburg.
var Berlin = Region{
	Name:              "berlin",
	Country:           "DE",
	ExcludedCountries: []string{"PL"},
	PostcodeMin:       10115,
	PostcodeMax:       15000,
	StreetMisspelling: `Chausee|Chausse($|\b)`,
	StreetReplacement: "Chaussee",
	PhoneCountryCode:  "49",
	PhoneLabel:        "Telefon",
}

// LoadRegion reads a YAML region file. Values missing in the file are taken
// from Berlin.
func LoadRegion(filename string) (Region, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return Region{}, errors.Wrap(err, "reading region file")
	}
	r, err := ParseRegion(b)
	if err != nil {
		return Region{}, errors.Wrapf(err, "region file %s", filename)
	}
	return r, nil
}

// ParseRegion parses and validates a YAML region definition.
func ParseRegion(b []byte) (Region, error) {
	r := Berlin
	r.ExcludedCountries = append([]string(nil), Berlin.ExcludedCountries...)
	if err := yaml.UnmarshalStrict(b, &r); err != nil {
		return Region{}, errors.Wrap(err, "parsing region")
	}
	if errs := r.check(); len(errs) > 0 {
		return Region{}, errs[0]
	}
	return r, nil
}

func (r *Region) check() []error {
	errs := validationErrors(validate.Struct(r))
	if _, err := regexp.Compile(r.StreetMisspelling); err != nil {
		errs = append(errs, errors.Wrap(err, "invalid street_misspelling"))
	}
	return errs
}
