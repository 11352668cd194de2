package core

import "strings"

// DelimiterSampleSize is how many leading bytes DetectDelimiter inspects.
var DelimiterSampleSize = 1000

// delimiterSampleLines is how many lines of the sample are scored.
const delimiterSampleLines = 5

// Candidates in priority order. Ties keep the earlier candidate.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// DelimiterCandidates returns the fixed candidate set in priority order.
func DelimiterCandidates() []rune {
	out := make([]rune, len(delimiterCandidates))
	copy(out, delimiterCandidates)
	return out
}

// DetectDelimiter guesses the field separator of a delimited text sample.
//
// Each candidate is counted on the first five lines of the sample. The score
// is mean/(1+variance), which rewards both frequency and row-to-row
// consistency. A sample with fewer than two lines cannot show consistency and
// yields a comma, as does a sample where no candidate scores above zero.
func DetectDelimiter(sample string) rune {
	if len(sample) > DelimiterSampleSize {
		sample = sample[:DelimiterSampleSize]
	}

	lines := strings.Split(sample, "\n")
	if len(lines) > delimiterSampleLines {
		lines = lines[:delimiterSampleLines]
	}
	if len(lines) < 2 {
		return ','
	}

	best := ','
	bestScore := 0.0
	for _, d := range delimiterCandidates {
		if s := delimiterScore(lines, d); s > bestScore {
			bestScore = s
			best = d
		}
	}
	return best
}

func delimiterScore(lines []string, d rune) float64 {
	sep := string(d)
	counts := make([]float64, len(lines))
	var sum float64
	for i, line := range lines {
		counts[i] = float64(strings.Count(line, sep))
		sum += counts[i]
	}
	mean := sum / float64(len(counts))

	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))

	return mean * (1 / (1 + variance))
}
