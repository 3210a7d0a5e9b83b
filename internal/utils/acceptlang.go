package utils

import (
	"sort"
	"strconv"
	"strings"
)

// SupportedLocales lists the locales with server-side message tables.
var SupportedLocales = []string{"en", "zh"}

// DetermineLocale resolves the response locale. An explicit ?lang wins, then
// the highest-q Accept-Language entry, then def, then the first supported value.
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := make(map[string]bool, len(supported))
	for _, s := range supported {
		sup[strings.ToLower(s)] = true
	}
	pick := func(lang string) (string, bool) {
		l := strings.ToLower(strings.TrimSpace(lang))
		if l == "" {
			return "", false
		}
		if sup[l] {
			return l, true
		}
		if base, _, ok := strings.Cut(l, "-"); ok && sup[base] {
			return base, true
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}

	type cand struct {
		lang string
		q    float64
	}
	var cands []cand
	for _, part := range strings.Split(acceptLang, ",") {
		lang, params, _ := strings.Cut(part, ";")
		q := 1.0
		if k, v, ok := strings.Cut(params, "="); ok && strings.TrimSpace(k) == "q" {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				q = f
			}
		}
		if l, ok := pick(lang); ok && q > 0 {
			cands = append(cands, cand{l, q})
		}
	}
	if len(cands) > 0 {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
		return cands[0].lang
	}
	if v, ok := pick(def); ok {
		return v
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "en"
}
