package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-cli/internal/model"
)

func defaultTable(t *testing.T) *Table {
	t.Helper()
	table, err := DefaultTable()
	require.NoError(t, err)
	return table
}

func TestScores_Overall(t *testing.T) {
	centrum := Scores{Safety: 6, GreenSpace: 4, Amenities: 10, Restaurants: 10, FamilyFriendly: 4, ExpatFriendly: 9}
	// (9 + 4 + 12 + 8 + 4 + 9) / 6.5 = 7.08
	assert.Equal(t, 7.1, centrum.Overall())

	all10 := Scores{Safety: 10, GreenSpace: 10, Amenities: 10, Restaurants: 10, FamilyFriendly: 10, ExpatFriendly: 10}
	assert.Equal(t, 10.0, all10.Overall())
}

func TestDefaultTable(t *testing.T) {
	table := defaultTable(t)
	assert.Equal(t, []string{"amsterdam"}, table.Cities())
}

func TestParseTable_Errors(t *testing.T) {
	_, err := ParseTable([]byte("amsterdam: ["))
	assert.Error(t, err)

	_, err = ParseTable([]byte(`
amsterdam:
  neighborhoods:
    - {key: centrum, name: Centrum}
  aliases:
    - {alias: dam, key: nowhere}
`))
	assert.ErrorContains(t, err, "unknown neighborhood")

	_, err = ParseTable([]byte(`
amsterdam:
  neighborhoods:
    - {key: centrum, name: Centrum}
  postal_ranges:
    - {from: 1000, to: 1010, key: nowhere}
`))
	assert.ErrorContains(t, err, "unknown neighborhood")
}

func TestIdentify(t *testing.T) {
	table := defaultTable(t)

	tests := []struct {
		name    string
		listing model.Listing
		want    string
	}{
		{"municipality by city", model.Listing{City: model.Ptr("Amstelveen"), Address: model.Ptr("Amstel 1")}, "Amstelveen"},
		{"alias in address", model.Listing{Address: model.Ptr("Ferdinand Bolstraat 10, De Pijp")}, "De Pijp"},
		{"longer alias wins", model.Listing{Address: model.Ptr("Bijlmerdreef 1, Amsterdam Zuidoost")}, "Zuidoost"},
		{"direct name", model.Listing{Neighborhood: model.Ptr("Westerpark")}, "Westerpark"},
		{"hyphenated name with space", model.Listing{Neighborhood: model.Ptr("Oud Zuid")}, "Oud-Zuid"},
		{"diacritics folded", model.Listing{Neighborhood: model.Ptr("IJbürg")}, "IJburg"},
		{"postal centrum", model.Listing{PostalCode: model.Ptr("1017 AB")}, "Centrum"},
		{"postal oud-west before west", model.Listing{PostalCode: model.Ptr("1054GE")}, "Oud-West"},
		{"postal buitenveldert", model.Listing{PostalCode: model.Ptr("1082 MS")}, "Buitenveldert"},
		{"postal nieuw-west", model.Listing{PostalCode: model.Ptr("1086 AA")}, "Nieuw-West"},
		{"postal oost", model.Listing{PostalCode: model.Ptr("1094 AB")}, "Oost"},
		{"postal amstelveen", model.Listing{PostalCode: model.Ptr("1183 AS")}, "Amstelveen"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ok := table.Identify("Amsterdam", &tc.listing)
			require.True(t, ok)
			assert.Equal(t, tc.want, s.Name)
		})
	}
}

func TestIdentify_Unknown(t *testing.T) {
	table := defaultTable(t)

	_, ok := table.Identify("amsterdam", &model.Listing{PostalCode: model.Ptr("3511 AA")})
	assert.False(t, ok)
	_, ok = table.Identify("amsterdam", &model.Listing{})
	assert.False(t, ok)
	_, ok = table.Identify("helsinki", &model.Listing{Neighborhood: model.Ptr("Centrum")})
	assert.False(t, ok)
}

func TestNeighborhoodEnricher(t *testing.T) {
	e := NewNeighborhoodEnricher(defaultTable(t), "amsterdam")

	l := &model.Listing{PostalCode: model.Ptr("1012 LG")}
	require.NoError(t, e.Enrich(context.Background(), l))
	assert.Equal(t, "Centrum", *l.NeighborhoodName)
	assert.Equal(t, 6, *l.NeighborhoodSafety)
	assert.Equal(t, 4, *l.NeighborhoodGreenSpace)
	assert.Equal(t, 10, *l.NeighborhoodAmenities)
	assert.Equal(t, 10, *l.NeighborhoodRestaurants)
	assert.Equal(t, 4, *l.NeighborhoodFamilyFriendly)
	assert.Equal(t, 9, *l.NeighborhoodExpatFriendly)
	assert.Equal(t, 7.1, *l.NeighborhoodOverall)

	unknown := &model.Listing{PostalCode: model.Ptr("9999 ZZ")}
	require.NoError(t, e.Enrich(context.Background(), unknown))
	assert.Nil(t, unknown.NeighborhoodName)
}
