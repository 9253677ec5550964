package model

import "sort"

// QualityFlag marks a completeness or trust issue on a place record.
// The enumeration is append-only: stored flag sets are read back by
// name, so renaming or removing a flag requires a data migration.
type QualityFlag string

const (
	FlagMissingHours     QualityFlag = "MISSING_HOURS"
	FlagUnverifiedRating QualityFlag = "UNVERIFIED_RATING"
	FlagThinAboutText    QualityFlag = "THIN_ABOUT_TEXT"
	FlagNoAboutText      QualityFlag = "NO_ABOUT_TEXT"
	FlagStaleData        QualityFlag = "STALE_DATA"
	FlagSuspectRating    QualityFlag = "SUSPECT_RATING"
	FlagMissingPhone     QualityFlag = "MISSING_PHONE"
	FlagNoPhotos         QualityFlag = "NO_PHOTOS"
)

// AllQualityFlags lists every known flag.
func AllQualityFlags() []QualityFlag {
	return []QualityFlag{
		FlagMissingHours,
		FlagUnverifiedRating,
		FlagThinAboutText,
		FlagNoAboutText,
		FlagStaleData,
		FlagSuspectRating,
		FlagMissingPhone,
		FlagNoPhotos,
	}
}

// FlagSet accumulates flags with set semantics.
type FlagSet map[QualityFlag]struct{}

// NewFlagSet builds a set from the given flags.
func NewFlagSet(flags ...QualityFlag) FlagSet {
	s := make(FlagSet, len(flags))
	for _, f := range flags {
		s[f] = struct{}{}
	}
	return s
}

// Add inserts a flag.
func (s FlagSet) Add(f QualityFlag) {
	s[f] = struct{}{}
}

// Has reports membership.
func (s FlagSet) Has(f QualityFlag) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the flags in stable lexical order for storage.
func (s FlagSet) Sorted() []QualityFlag {
	out := make([]QualityFlag, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
