// Package docscore rates how consistent a purchase's supporting documents are.
package docscore

import "sort"

// Flag is a document risk signal. Each true flag costs a fixed weight.
type Flag string

const (
	FlagNFMissing        Flag = "nf_missing"
	FlagSerialMismatch   Flag = "serial_mismatch"
	FlagDateMismatch     Flag = "date_mismatch"
	FlagValueMismatch    Flag = "value_mismatch"
	FlagSellerUnverified Flag = "seller_unverified"
	FlagPhotoMissing     Flag = "photo_missing"
)

var weights = map[Flag]int{
	FlagNFMissing:        30,
	FlagSerialMismatch:   25,
	FlagDateMismatch:     15,
	FlagValueMismatch:    15,
	FlagSellerUnverified: 10,
	FlagPhotoMissing:     10,
}

const (
	BandValidated   = "Consistente (validado)"
	BandWithCaveats = "Consistente com ressalvas"
	BandUnclear     = "Inconclusivo"
	BandNotMatching = "Inconsistente"
)

// Result is a score in [0, 100] with its band label.
type Result struct {
	Score int    `json:"score"`
	Band  string `json:"band"`
	Hits  []Flag `json:"hits,omitempty"`
}

// Score starts at 100 and subtracts the weight of every true known flag.
// Unknown flags are ignored.
func Score(flags map[Flag]bool) Result {
	score := 100
	var hits []Flag
	for flag, set := range flags {
		w, known := weights[flag]
		if !set || !known {
			continue
		}
		score -= w
		hits = append(hits, flag)
	}
	score = max(score, 0)
	sort.Slice(hits, func(i, j int) bool { return hits[i] < hits[j] })
	return Result{Score: score, Band: Band(score), Hits: hits}
}

func Band(score int) string {
	switch {
	case score >= 85:
		return BandValidated
	case score >= 60:
		return BandWithCaveats
	case score >= 40:
		return BandUnclear
	default:
		return BandNotMatching
	}
}

// Flags lists the known flags.
func Flags() []Flag {
	out := make([]Flag, 0, len(weights))
	for f := range weights {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
