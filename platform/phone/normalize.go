// Package phone resolves free-form phone input to E.164.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region used for national numbers when none is configured.
const DefaultRegion = "NL"

// Normalizer formats numbers typed by visitors and agents. National numbers
// are read as belonging to Region.
type Normalizer struct {
	Region string
}

// NewNormalizer returns a Normalizer for region, falling back to DefaultRegion.
func NewNormalizer(region string) Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return Normalizer{Region: region}
}

// Parse returns the E.164 form of input and whether it is a valid number.
func (n Normalizer) Parse(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}
	region := n.Region
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed, false
	}
	return phonenumbers.Format(number, phonenumbers.E164), true
}

// E164 returns the E.164 form of input. Input that does not parse as a valid
// number is kept as typed (trimmed) so nothing the visitor entered is lost.
func (n Normalizer) E164(input string) string {
	out, _ := n.Parse(input)
	return out
}
