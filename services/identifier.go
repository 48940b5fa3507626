package services

import (
	"regexp"
	"strings"
)

// The normalizer is a set of pure functions: each endpoint knows which
// identifier kind it expects and calls the matching extractor. There is
// no arbitration between kinds here.

var (
	arxivURLRegex  = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/([0-9]{4}\.[0-9]{4,6}(?:v[0-9]+)?)`)
	arxivBareRegex = regexp.MustCompile(`^[0-9]{4}\.[0-9]{4,6}(?:v[0-9]+)?$`)

	doiRegex = regexp.MustCompile(`10\.[0-9]{4,9}/[^\s"<>]+`)

	pmidURLRegex  = regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/([0-9]{7,9})`)
	pmidBareRegex = regexp.MustCompile(`^[0-9]{7,9}$`)
)

// ExtractArxivID pulls the ArXiv id out of an abs/pdf URL or a bare id.
func ExtractArxivID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if m := arxivURLRegex.FindStringSubmatch(raw); m != nil {
		return strings.TrimSuffix(m[1], ".pdf"), nil
	}
	if arxivBareRegex.MatchString(raw) {
		return raw, nil
	}
	return "", ErrInvalidIdentifier
}

// ExtractDOI pulls a DOI out of a raw string, a resolver URL
// (doi.org, dx.doi.org) or a "DOI:"-labelled form.
func ExtractDOI(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	// Strip label and resolver prefixes so the pattern match anchors on
	// the DOI itself.
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"doi:", "https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/"} {
		if strings.HasPrefix(lower, prefix) {
			raw = strings.TrimSpace(raw[len(prefix):])
			break
		}
	}

	m := doiRegex.FindString(raw)
	if m == "" {
		return "", ErrInvalidIdentifier
	}
	// Trailing sentence punctuation is never part of a DOI.
	return strings.TrimRight(m, ".,;)"), nil
}

// ExtractPMID pulls a PMID out of a bare numeric string or a PubMed URL.
func ExtractPMID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if m := pmidURLRegex.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if pmidBareRegex.MatchString(raw) {
		return raw, nil
	}
	return "", ErrInvalidIdentifier
}
