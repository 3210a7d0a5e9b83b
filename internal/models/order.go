package models

import "sort"

// SortSections orders sections by Order, then CreatedAt, then ID.
func SortSections(secs []*Section) {
	sort.SliceStable(secs, func(i, j int) bool {
		a, b := secs[i], secs[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortQuestions orders questions by Order, then CreatedAt, then ID.
func SortQuestions(qs []*Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		a, b := qs[i], qs[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
