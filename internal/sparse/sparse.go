// Package sparse holds the sparse feature vector shared by the vectorizer
// and the classifier.
package sparse

import "sort"

// Entry is one non-zero component of a Vector.
type Entry struct {
	Index int     `json:"i"`
	Value float64 `json:"v"`
}

// Vector is a sparse vector with entries sorted by ascending Index
// and no duplicate indices. The zero value is the all-zero vector.
type Vector []Entry

// Get returns the component at index, or 0 when it is not stored.
func (v Vector) Get(index int) float64 {
	i := sort.Search(len(v), func(i int) bool { return v[i].Index >= index })
	if i < len(v) && v[i].Index == index {
		return v[i].Value
	}
	return 0
}

// FromMap builds a Vector from index → value pairs, dropping zeros.
func FromMap(values map[int]float64) Vector {
	v := make(Vector, 0, len(values))
	for index, value := range values {
		if value != 0 {
			v = append(v, Entry{Index: index, Value: value})
		}
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Index < v[j].Index })
	return v
}
