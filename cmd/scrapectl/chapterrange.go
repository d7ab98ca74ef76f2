package main

import (
	"fmt"
	"strconv"
	"strings"
)

type chapterSpan struct {
	from float64
	to   float64
}

// chapterRange is a comma separated list of chapter numbers and inclusive
// spans, e.g. "1,2,5-7,10.5".
type chapterRange []chapterSpan

func parseChapterRange(raw string) (chapterRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty chapter range")
	}

	var out chapterRange
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, isSpan := strings.Cut(part, "-")
		start, err := parseChapterNumber(from)
		if err != nil {
			return nil, err
		}
		end := start
		if isSpan {
			if end, err = parseChapterNumber(to); err != nil {
				return nil, err
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid chapter span %q: end before start", part)
		}
		out = append(out, chapterSpan{from: start, to: end})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("empty chapter range")
	}
	return out, nil
}

func parseChapterNumber(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid chapter number %q", strings.TrimSpace(raw))
	}
	return value, nil
}

func (r chapterRange) Contains(number float64) bool {
	for _, span := range r {
		if number >= span.from && number <= span.to {
			return true
		}
	}
	return false
}
