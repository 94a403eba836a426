package domain

import (
	"sort"
	"time"
)

// Classification is a regulatory tier for a controlled substance: Opium Act
// list (I/II) or EU precursor category (1/2/3).
type Classification string

const (
	ClassificationOpiumListI  Classification = "opium_list_i"
	ClassificationOpiumListII Classification = "opium_list_ii"
	ClassificationPrecursor1  Classification = "precursor_cat_1"
	ClassificationPrecursor2  Classification = "precursor_cat_2"
	ClassificationPrecursor3  Classification = "precursor_cat_3"
	ClassificationUnscheduled Classification = "unscheduled"
)

// IsPrecursor reports whether the tier is an EU precursor category.
func (c Classification) IsPrecursor() bool {
	switch c {
	case ClassificationPrecursor1, ClassificationPrecursor2, ClassificationPrecursor3:
		return true
	}
	return false
}

// ControlledSubstance is reference data for a substance code.
type ControlledSubstance struct {
	Code           string         `db:"code" json:"code"`
	Name           string         `db:"name" json:"name"`
	Classification Classification `db:"classification" json:"classification"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Reclassification is an effective-dated change of a substance tier.
// Records are append-only; the current tier is a point query over the set.
type Reclassification struct {
	ID             string         `db:"id" json:"id"`
	SubstanceCode  string         `db:"substance_code" json:"substance_code"`
	Classification Classification `db:"classification" json:"classification"`
	EffectiveDate  time.Time      `db:"effective_date" json:"effective_date"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// ClassificationTimeline answers "what tier was this substance as of date X"
// over an append-only list of effective-dated records.
type ClassificationTimeline struct {
	base    Classification
	records []Reclassification
}

// NewClassificationTimeline builds a timeline from the substance's base
// classification and its reclassification records, in any order.
func NewClassificationTimeline(base Classification, records []Reclassification) *ClassificationTimeline {
	sorted := make([]Reclassification, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})
	return &ClassificationTimeline{base: base, records: sorted}
}

// AsOf returns the classification in force on the given date. Records with a
// future effective date are ignored; ties resolve to the later record.
func (t *ClassificationTimeline) AsOf(date time.Time) Classification {
	current := t.base
	for _, rec := range t.records {
		if rec.EffectiveDate.After(date) {
			break
		}
		current = rec.Classification
	}
	return current
}
