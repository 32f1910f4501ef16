/*
Package audit collects statistics about street names, phone numbers, house
numbers and tag usage of an OSM file. The report shows which values the
normalization rules need to handle and how they look after normalization.
*/
package audit

import (
	"regexp"
	"sort"
	"strings"

	"github.com/omniscale/osmshape/config"
	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/normalize"
	"github.com/omniscale/osmshape/shape"
)

const (
	streetKey      = "addr:street"
	phoneKey       = "phone"
	houseNumberKey = "addr:housenumber"
	countryKey     = "addr:country"
)

var (
	// streets with one of these suffixes or prefixes are expected
	streetSuffix = regexp.MustCompile(`(?i)(straße|brücke|weg|allee|ring|steig|platz|stieg|steg|aue|acker|heide|feld|lauf|kamp|blick|burg|schlag|wald|tal|tor|eck|sprung|reihe|plantage|graben|hain|heck|horst|mark|rain|schanze|gang|wall|hof|grund|anger|plan|ufer|passage|zeile|hang|winkel|garten|park|wiese|berg|damm|pfad|gasse|promenade)$`)
	streetPrefix = regexp.MustCompile(`(?i)^(Am|Zum|Zur|An der|Im|Zu den|Unter den|An den|Zwischen den|Hinter den|In den|Auf dem|Weg am|Allee der|Rue|Avenue|Alt-|Via|Straße)`)

	expectedStreetTypes = map[string]bool{
		"Weg": true, "Straße": true, "Damm": true, "Platz": true, "Allee": true,
		"Gang": true, "Garten": true, "Anger": true, "Ring": true, "Steg": true,
		"Steig": true, "Pfad": true, "Promenade": true, "See": true, "Siedlung": true,
		"Zeile": true, "Winkel": true, "Weinberg": true, "Ufer": true, "Aue": true,
		"Bahn": true, "Berg": true, "Chaussee": true, "Feld": true, "Bogen": true,
		"Esplanade": true, "Gärten": true, "Heide": true, "Karree": true, "Kehre": true,
	}
)

// area codes of Berlin, Brandenburg and service numbers
const (
	areaCodes   = "30|33|34|35|800|180"
	mobileCodes = "15|16|17"
)

type class struct {
	name string
	re   *regexp.Regexp
}

var houseNumberClasses = []class{
	{"no_letter", regexp.MustCompile(`^[0-9]+$`)},
	{"small_letter", regexp.MustCompile(`^[0-9]+[a-z]+`)},
	{"big_letter", regexp.MustCompile(`^[0-9]+[A-Z]+`)},
	{"hyphen", regexp.MustCompile(`^[0-9]+-[0-9]+`)},
	{"slash", regexp.MustCompile(`^[0-9]+/[0-9]+`)},
	{"comma", regexp.MustCompile(`^[0-9]+,[0-9]+`)},
	{"semicolon", regexp.MustCompile(`^[0-9]+;[0-9]+`)},
}

// classify returns the name of the first matching class, or v itself.
func classify(classes []class, v string) string {
	for _, c := range classes {
		if c.re.MatchString(v) {
			return c.name
		}
	}
	return v
}

func phoneClasses(cc string) []class {
	q := regexp.QuoteMeta(cc)
	return []class{
		{"+" + cc + "30", regexp.MustCompile(`^\+` + q + `(` + areaCodes + `)[0-9]+`)},
		{"00" + cc + "30", regexp.MustCompile(`^00` + q + `(` + areaCodes + `)[0-9]+`)},
		{cc + "30", regexp.MustCompile(`^` + q + `(` + areaCodes + `)[0-9]+`)},
		{"030", regexp.MustCompile(`^0(` + areaCodes + `)[0-9]+`)},
		{"+" + cc + "030", regexp.MustCompile(`^\+` + q + `0(` + areaCodes + `)[0-9]+`)},
		{"mobile_+" + cc, regexp.MustCompile(`^\+` + q + `(` + mobileCodes + `)[0-9]+`)},
		{"mobile00" + cc, regexp.MustCompile(`^00` + q + `(` + mobileCodes + `)[0-9]+`)},
		{"mobile", regexp.MustCompile(`^0(` + mobileCodes + `)[0-9]+`)},
	}
}

func phoneChecks(cc string) []class {
	q := regexp.QuoteMeta(cc)
	codes := areaCodes + "|" + mobileCodes
	return []class{
		{"+" + cc + "_PATTERN", regexp.MustCompile(`^\+` + q + `[^0][0-9]+`)},
		{"00" + cc + "_PATTERN", regexp.MustCompile(`^00` + q + `(` + codes + `)[0-9]+`)},
		{"ERROR", regexp.MustCompile(`^` + q + `(` + codes + `)[0-9]+`)},
		{"no_country", regexp.MustCompile(`^0(` + codes + `)[0-9]+`)},
		{"ERROR", regexp.MustCompile(`^\+` + q + `0(` + codes + `)[0-9]+`)},
	}
}

// Auditor collects the values of all added elements. Not safe for
// concurrent use.
type Auditor struct {
	region     config.Region
	normalizer *normalize.Normalizer
	shaper     *shape.Shaper

	phoneClasses []class
	phoneChecks  []class

	streetTypes map[string]map[string]struct{}
	misspelled  map[string]map[string]struct{}
	phones      map[string]int
	phonesAfter map[string]int
	houses      map[string]int
	housesAfter map[string]int
	nodeKeys    map[string]int
	wayKeys     map[string]int
	elements    int
	regionElems int
}

// New returns an Auditor for the rules of region.
func New(region config.Region) (*Auditor, error) {
	n, err := normalize.New(normalize.Rules{
		StreetMisspelling: region.StreetMisspelling,
		StreetReplacement: region.StreetReplacement,
		PhoneCountryCode:  region.PhoneCountryCode,
		PhoneLabel:        region.PhoneLabel,
	})
	if err != nil {
		return nil, err
	}
	s, err := shape.New(region)
	if err != nil {
		return nil, err
	}
	return &Auditor{
		region:       region,
		normalizer:   n,
		shaper:       s,
		phoneClasses: phoneClasses(region.PhoneCountryCode),
		phoneChecks:  phoneChecks(region.PhoneCountryCode),
		streetTypes:  make(map[string]map[string]struct{}),
		misspelled:   make(map[string]map[string]struct{}),
		phones:       make(map[string]int),
		phonesAfter:  make(map[string]int),
		houses:       make(map[string]int),
		housesAfter:  make(map[string]int),
		nodeKeys:     make(map[string]int),
		wayKeys:      make(map[string]int),
	}, nil
}

// Add audits the tags of nodes and ways. Other elements are ignored.
func (a *Auditor) Add(e *element.Element) {
	if e.Kind != element.NodeKind && e.Kind != element.WayKind {
		return
	}
	a.elements++
	for _, tag := range e.Tags {
		switch tag.Key {
		case streetKey:
			a.addStreet(tag.Value)
		case phoneKey:
			a.addPhone(tag.Value)
		case houseNumberKey:
			a.addHouseNumber(tag.Value)
		}
	}

	if !a.inRegion(e) {
		return
	}
	a.regionElems++
	keys := a.nodeKeys
	if e.Kind == element.WayKind {
		keys = a.wayKeys
	}
	for _, tag := range e.Tags {
		keys[tag.Key]++
	}
}

// inRegion returns whether the element is tagged with the country of the
// region and all postcodes are inside the region.
func (a *Auditor) inRegion(e *element.Element) bool {
	if a.region.Country == "" {
		return false
	}
	if country, ok := e.Tag(countryKey); !ok || country != a.region.Country {
		return false
	}
	return a.shaper.Check(e.Tags) == shape.Accepted
}

func addName(m map[string]map[string]struct{}, key, name string) {
	names, ok := m[key]
	if !ok {
		names = make(map[string]struct{})
		m[key] = names
	}
	names[name] = struct{}{}
}

// streetType returns the last word of name.
func streetType(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func (a *Auditor) addStreet(name string) {
	if part := a.normalizer.MisspelledPart(name); part != "" {
		addName(a.misspelled, part, name)
	}
	if streetSuffix.MatchString(name) || streetPrefix.MatchString(name) {
		return
	}
	t := streetType(name)
	if t == "" || expectedStreetTypes[t] {
		return
	}
	addName(a.streetTypes, t, name)
}

func (a *Auditor) addPhone(number string) {
	a.phones[classify(a.phoneClasses, a.normalizer.CleanPhoneNumber(number))]++
	if normalized := a.normalizer.PhoneNumber(number); normalized != "" {
		a.phonesAfter[classify(a.phoneChecks, normalized)]++
	}
}

func (a *Auditor) addHouseNumber(number string) {
	a.houses[classify(houseNumberClasses, strings.Replace(number, " ", "", -1))]++
	for _, n := range a.normalizer.HouseNumber(number) {
		a.housesAfter[classify(houseNumberClasses, n)]++
	}
}

// Count is the number of occurrences of Key.
type Count struct {
	Key string
	N   int
}

// Correction is a misspelled street name and its corrected form.
type Correction struct {
	Misspelling string
	Name        string
	Corrected   string
}

type Report struct {
	Region         string
	Elements       int
	RegionElements int

	// StreetTypes maps unexpected street types to all street names with
	// that type.
	StreetTypes map[string][]string
	Misspelled  []Correction
	Phones      []Count
	PhonesAfter []Count
	Houses      []Count
	HousesAfter []Count
	NodeKeys    []Count
	WayKeys     []Count
}

// Report returns the current results. All counts are sorted by frequency.
func (a *Auditor) Report() *Report {
	r := &Report{
		Region:         a.region.Name,
		Elements:       a.elements,
		RegionElements: a.regionElems,
		StreetTypes:    make(map[string][]string, len(a.streetTypes)),
		Phones:         sortedCounts(a.phones),
		PhonesAfter:    sortedCounts(a.phonesAfter),
		Houses:         sortedCounts(a.houses),
		HousesAfter:    sortedCounts(a.housesAfter),
		NodeKeys:       sortedCounts(a.nodeKeys),
		WayKeys:        sortedCounts(a.wayKeys),
	}
	for t, names := range a.streetTypes {
		r.StreetTypes[t] = sortedNames(names)
	}
	for part, names := range a.misspelled {
		for _, name := range sortedNames(names) {
			r.Misspelled = append(r.Misspelled, Correction{
				Misspelling: part,
				Name:        name,
				Corrected:   a.normalizer.StreetName(name),
			})
		}
	}
	sort.Slice(r.Misspelled, func(i, j int) bool {
		return r.Misspelled[i].Name < r.Misspelled[j].Name
	})
	return r
}

func sortedNames(names map[string]struct{}) []string {
	result := make([]string, 0, len(names))
	for n := range names {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

func sortedCounts(counts map[string]int) []Count {
	result := make([]Count, 0, len(counts))
	for k, n := range counts {
		result = append(result, Count{k, n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].N != result[j].N {
			return result[i].N > result[j].N
		}
		return result[i].Key < result[j].Key
	})
	return result
}
