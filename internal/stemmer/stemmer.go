// Package stemmer turns raw text into Snowball English stems.
//
// Text is normalized to NFD, stripped of everything that is not a letter or
// whitespace, lowercased and split on whitespace. Each resulting word is
// stemmed. A Stemmer memoizes recent stems in a bounded LRU and is safe for
// concurrent use.
package stemmer

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

// DefaultCacheSize is used when New is given a non-positive size.
const DefaultCacheSize = 4096

type Stemmer struct {
	memo *lru.Cache[string, string]
}

func New(cacheSize int) *Stemmer {
	if cacheSize < 1 {
		cacheSize = DefaultCacheSize
	}
	memo, err := lru.New[string, string](cacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &Stemmer{memo: memo}
}

// Clean decomposes text to NFD, removes every rune that is neither a letter
// nor whitespace and lowercases the rest. Accents are dropped along with
// their combining marks.
func Clean(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Split breaks already cleaned text on runs of whitespace. Blank text yields
// no words.
func Split(text string) []string {
	return strings.Fields(text)
}

// Parse is Split(Clean(text)).
func Parse(text string) []string {
	return Split(Clean(text))
}

// Stem returns the Snowball English stem of one parsed word. Stop words are
// stemmed too, never removed.
func (s *Stemmer) Stem(word string) string {
	if stem, ok := s.memo.Get(word); ok {
		return stem
	}
	stem := english.Stem(word, true)
	s.memo.Add(word, stem)
	return stem
}

// AddStems parses line and calls fn with each stem in order.
func (s *Stemmer) AddStems(line string, fn func(stem string)) {
	for _, word := range Parse(line) {
		if stem := s.Stem(word); stem != "" {
			fn(stem)
		}
	}
}

// ListStems returns the stems of line in order, duplicates kept.
func (s *Stemmer) ListStems(line string) []string {
	var stems []string
	s.AddStems(line, func(stem string) {
		stems = append(stems, stem)
	})
	return stems
}

// UniqueStems returns the sorted, deduplicated stems of line.
func (s *Stemmer) UniqueStems(line string) []string {
	set := make(map[string]struct{})
	s.AddStems(line, func(stem string) {
		set[stem] = struct{}{}
	})
	stems := make([]string, 0, len(set))
	for stem := range set {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems
}

// StemReader reads r line by line and calls fn with each stem in document
// order. It stops at the first read error.
func (s *Stemmer) StemReader(r io.Reader, fn func(stem string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.AddStems(line, fn)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// UniqueStems is a convenience for one-off lines.
func UniqueStems(line string) []string {
	return New(DefaultCacheSize).UniqueStems(line)
}

// ListStems is a convenience for one-off lines.
func ListStems(line string) []string {
	return New(DefaultCacheSize).ListStems(line)
}
