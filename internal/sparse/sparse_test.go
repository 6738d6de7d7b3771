package sparse

import "testing"

func TestVector_Get(t *testing.T) {
	v := Vector{{Index: 1, Value: 0.5}, {Index: 4, Value: 0.25}, {Index: 9, Value: 1}}

	tests := []struct {
		index int
		want  float64
	}{
		{0, 0},
		{1, 0.5},
		{4, 0.25},
		{5, 0},
		{9, 1},
		{100, 0},
		{-1, 0},
	}

	for _, tt := range tests {
		if got := v.Get(tt.index); got != tt.want {
			t.Errorf("Get(%d) = %f, want %f", tt.index, got, tt.want)
		}
	}

	var empty Vector
	if got := empty.Get(3); got != 0 {
		t.Errorf("empty Get(3) = %f, want 0", got)
	}
}

func TestFromMap(t *testing.T) {
	v := FromMap(map[int]float64{7: 0.1, 2: 0.2, 5: 0})

	if len(v) != 2 {
		t.Fatalf("FromMap() returned %d entries, want 2 (zeros dropped)", len(v))
	}
	if v[0].Index != 2 || v[1].Index != 7 {
		t.Errorf("FromMap() indices = %d, %d, want 2, 7", v[0].Index, v[1].Index)
	}
}
