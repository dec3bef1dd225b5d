package core

import (
	"encoding/json"
	"errors"
	"strings"
)

// Category is the canonical key of an invoice's expense category.
type Category string

const (
	CategoryOffice     Category = "buero"
	CategorySoftware   Category = "software"
	CategoryHardware   Category = "hardware"
	CategoryTravel     Category = "reise"
	CategoryMarketing  Category = "marketing"
	CategoryConsulting Category = "beratung"
	CategoryRent       Category = "miete"
	CategoryInsurance  Category = "versicherung"
	CategoryTelecom    Category = "telekommunikation"
	CategoryTraining   Category = "fortbildung"
	CategoryOther      Category = "sonstiges"
)

// Categories is the closed set offered by the form, in display order.
var Categories = []Category{
	CategoryOffice,
	CategorySoftware,
	CategoryHardware,
	CategoryTravel,
	CategoryMarketing,
	CategoryConsulting,
	CategoryRent,
	CategoryInsurance,
	CategoryTelecom,
	CategoryTraining,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryOffice:     "Büro",
	CategorySoftware:   "Software",
	CategoryHardware:   "Hardware",
	CategoryTravel:     "Reise",
	CategoryMarketing:  "Marketing",
	CategoryConsulting: "Beratung",
	CategoryRent:       "Miete",
	CategoryInsurance:  "Versicherung",
	CategoryTelecom:    "Telekommunikation",
	CategoryTraining:   "Fortbildung",
	CategoryOther:      "Sonstiges",
}

var ErrInvalidCategory = errors.New("invalid category")

// Known reports whether c belongs to the closed category set.
func (c Category) Known() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name. Unknown keys are shown verbatim.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// CategoryLabel is a convenience for templates.
func CategoryLabel(c Category) string {
	return c.Label()
}

// categoryPair is the label/key object form some clients store instead of the bare key.
type categoryPair struct {
	Label string `json:"label"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts the bare key string or the {"label","key"} pair object.
// The pair form is reduced to its key.
func (c *Category) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		*c = Category(strings.TrimSpace(key))
		return nil
	}
	var pair categoryPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return ErrInvalidCategory
	}
	switch {
	case pair.Key != "":
		*c = Category(pair.Key)
	case pair.Value != "":
		*c = Category(pair.Value)
	default:
		return ErrInvalidCategory
	}
	return nil
}
