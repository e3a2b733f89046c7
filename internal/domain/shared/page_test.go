package shared

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name         string
		in           Filter
		wantPage     int
		wantPageSize int
		wantOffset   int
	}{
		{"zero value", Filter{}, 1, DefaultPageSize, 0},
		{"negative page", Filter{Page: -3, PageSize: 10}, 1, 10, 0},
		{"third page", Filter{Page: 3, PageSize: 10}, 3, 10, 20},
		{"oversized page", Filter{Page: 2, PageSize: 10000}, 2, MaxPageSize, MaxPageSize},
		{"page past any offset", Filter{Page: math.MaxInt, PageSize: 20}, math.MaxInt, 20, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in.Normalize()
			assert.Equal(t, tt.wantPage, f.Page)
			assert.Equal(t, tt.wantPageSize, f.PageSize)
			assert.Equal(t, tt.wantOffset, f.Offset())
		})
	}
}

func TestNewPaginated(t *testing.T) {
	for total, pages := range map[int64]int{0: 0, 1: 1, 20: 1, 21: 2, 45: 3} {
		p := NewPaginated([]int{}, total, 1, 20)
		assert.Equal(t, pages, p.TotalPages, "total %d", total)
	}
	assert.Zero(t, NewPaginated[int](nil, 5, 1, 0).TotalPages)
}
