package expand

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// tokenPattern matches runs of two or more Unicode word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Keywords scores the terms of the combined corpus by TF-IDF and returns the
// top n purely alphabetic terms, highest score first, ties alphabetical.
// Term frequency is counted over the concatenation of docs; document
// frequency uses the smoothed form ln((1+n)/(1+df))+1 over the individual
// docs.
func Keywords(docs []string, n int) []string {
	if n <= 0 || len(docs) == 0 {
		return nil
	}

	tf := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range tokenize(doc) {
			tf[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}
	if len(tf) == 0 {
		return nil
	}

	type scored struct {
		term  string
		score float64
	}
	total := float64(len(docs))
	terms := make([]scored, 0, len(tf))
	for term, count := range tf {
		if !isAlpha(term) {
			continue
		}
		idf := math.Log((1+total)/(1+float64(df[term]))) + 1
		terms = append(terms, scored{term: term, score: float64(count) * idf})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})

	if len(terms) > n {
		terms = terms[:n]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.term
	}
	return out
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
