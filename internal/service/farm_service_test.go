package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lpdesk/lpdesk/internal/domain"
)

func TestFarmService_PairListOrderAndDedup(t *testing.T) {
	svc := NewFarmService(FarmLists{
		LP:    []string{"0xA", "0xb"},
		Dual:  []string{"0xc", "0xa"},
		Other: []string{"", "0xD", "0xB"},
	}, nil)

	assert.Equal(t, []string{"0xa", "0xb", "0xc", "0xd"}, svc.PairList())

	dual, err := svc.Category(domain.FarmDual)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xc", "0xa"}, dual)

	_, err = svc.Category("nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFarmService_BulkPairs(t *testing.T) {
	src := &fakePairSource{bulk: []domain.PairData{{ID: "0xa"}}}
	svc := NewFarmService(FarmLists{LP: []string{"0xA"}}, src)

	pairs, err := svc.BulkPairs(context.Background())
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.Equal(t, []string{"0xa"}, src.bulkIDs)

	empty, err := NewFarmService(FarmLists{}, src).BulkPairs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
