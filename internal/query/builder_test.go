package query

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingColumns() map[string]Column {
	return map[string]Column{
		"title":        {Name: "title", Kind: KindText},
		"description":  {Name: "description", Kind: KindText},
		"price":        {Name: "price", Kind: KindNumeric},
		"category":     {Name: "category_id", Kind: KindIdentifier},
		"availability": {Name: "is_available", Kind: KindBoolean},
		"sellerId":     {Name: "seller_id", Kind: KindText},
		"listingId":    {Name: "listing_id", Kind: KindText},
		"createdAt":    {Name: "created_at", Kind: KindText},
	}
}

func TestSearchBuildsDisjunction(t *testing.T) {
	params := url.Values{"searchTerm": {"lake house"}}
	b := New("listings", listingColumns(), params).Search("title", "description", "price", "category")

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE (title ILIKE ? OR description ILIKE ?)", sql)
	assert.Equal(t, []interface{}{"%lake house%", "%lake house%"}, args)
}

func TestSearchNumericTerm(t *testing.T) {
	params := url.Values{"searchTerm": {"1200"}}
	b := New("listings", listingColumns(), params).Search("title", "price")

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE (title ILIKE ? OR price = ?)", sql)
	assert.Equal(t, []interface{}{"%1200%", int64(1200)}, args)
}

func TestSearchIdentifierTerm(t *testing.T) {
	id := uuid.New()
	params := url.Values{"searchTerm": {id.String()}}
	b := New("listings", listingColumns(), params).Search("category")

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE (category_id = ?)", sql)
	assert.Equal(t, []interface{}{id}, args)
}

func TestSearchNoValidConditions(t *testing.T) {
	// A non-numeric, non-identifier term against numeric/identifier fields
	// leaves the OR-set empty: all rows pass.
	params := url.Values{"searchTerm": {"not-a-number"}}
	b := New("listings", listingColumns(), params).Search("price", "category")

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings", sql)
	assert.Empty(t, args)
}

func TestFilterMalformedNumericsNeverError(t *testing.T) {
	params := url.Values{
		"minPrice": {"abc"},
		"maxPrice": {"9&9"},
	}
	b := New("listings", listingColumns(), params).Filter()

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings", sql)
	assert.Empty(t, args)
}

func TestFilterPriceRange(t *testing.T) {
	params := url.Values{"minPrice": {"100"}, "maxPrice": {"500"}}
	b := New("listings", listingColumns(), params).Filter()

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE price >= ? AND price <= ?", sql)
	assert.Equal(t, []interface{}{int64(100), int64(500)}, args)
}

func TestFilterCategoryList(t *testing.T) {
	a, b2 := uuid.New(), uuid.New()
	params := url.Values{"category": {a.String() + "," + b2.String() + ",garbage"}}
	b := New("listings", listingColumns(), params).Filter()

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE category_id IN (?, ?)", sql)
	assert.Equal(t, []interface{}{a, b2}, args)
}

func TestFilterAvailabilityAndPassthrough(t *testing.T) {
	params := url.Values{
		"availability": {"true"},
		"sellerId":     {"S-00002"},
		"bogusColumn":  {"x"},
	}
	b := New("listings", listingColumns(), params).Filter()

	_, args := b.SelectSQL()
	require.Len(t, args, 2)
	assert.Contains(t, args, true)
	assert.Contains(t, args, "S-00002")
}

func TestFilterTitleSubstring(t *testing.T) {
	params := url.Values{"title": {"cabin"}}
	b := New("listings", listingColumns(), params).Filter()

	sql, args := b.SelectSQL()
	assert.Equal(t, "SELECT * FROM listings WHERE title ILIKE ?", sql)
	assert.Equal(t, []interface{}{"%cabin%"}, args)
}

func TestSortDefaultAndPrefixed(t *testing.T) {
	b := New("listings", listingColumns(), url.Values{}).Sort()
	sql, _ := b.SelectSQL()
	assert.Contains(t, sql, "ORDER BY created_at DESC")

	params := url.Values{"sort": {"-price,title,unknown"}}
	b = New("listings", listingColumns(), params).Sort()
	sql, _ = b.SelectSQL()
	assert.Contains(t, sql, "ORDER BY price DESC, title ASC")
}

func TestPaginateDefaults(t *testing.T) {
	cases := []struct {
		page, limit string
	}{
		{"", ""},
		{"0", "0"},
		{"-3", "-1"},
		{"abc", "xyz"},
	}

	for _, tc := range cases {
		params := url.Values{}
		if tc.page != "" {
			params.Set("page", tc.page)
		}
		if tc.limit != "" {
			params.Set("limit", tc.limit)
		}
		b := New("listings", listingColumns(), params).Paginate()
		sql, _ := b.SelectSQL()
		assert.Contains(t, sql, "LIMIT 8 OFFSET 0", "page=%q limit=%q", tc.page, tc.limit)
	}
}

func TestPaginateWindow(t *testing.T) {
	params := url.Values{"page": {"3"}, "limit": {"10"}}
	b := New("listings", listingColumns(), params).Paginate()
	sql, _ := b.SelectSQL()
	assert.Contains(t, sql, "LIMIT 10 OFFSET 20")
}

func TestFieldsProjection(t *testing.T) {
	params := url.Values{"fields": {"title,price,nonsense"}}
	b := New("listings", listingColumns(), params).Fields()
	sql, _ := b.SelectSQL()
	assert.Equal(t, "SELECT title, price FROM listings", sql)
}

func TestCountUsesFilteredNotPaginatedConditions(t *testing.T) {
	params := url.Values{
		"title": {"loft"},
		"page":  {"4"},
		"limit": {"2"},
	}
	b := New("listings", listingColumns(), params).Filter().Sort().Paginate()

	countSQL, countArgs := b.CountSQL()
	assert.Equal(t, "SELECT COUNT(*) FROM listings WHERE title ILIKE ?", countSQL)
	assert.Equal(t, []interface{}{"%loft%"}, countArgs)
}

func TestMetaTotalPage(t *testing.T) {
	cases := []struct {
		totalDoc  int64
		limit     string
		totalPage int64
	}{
		{0, "8", 0},
		{1, "8", 1},
		{8, "8", 1},
		{9, "8", 2},
		{100, "7", 15},
	}

	for _, tc := range cases {
		params := url.Values{"limit": {tc.limit}}
		b := New("listings", listingColumns(), params).Paginate()
		meta := b.Meta(tc.totalDoc)
		assert.Equal(t, tc.totalPage, meta.TotalPage,
			fmt.Sprintf("totalDoc=%d limit=%s", tc.totalDoc, tc.limit))
		assert.Equal(t, tc.totalDoc, meta.TotalDoc)
	}
}

func TestStagesComposeWithBaseCondition(t *testing.T) {
	params := url.Values{
		"searchTerm": {"villa"},
		"minPrice":   {"50"},
		"sort":       {"-createdAt"},
		"page":       {"2"},
		"limit":      {"5"},
	}
	b := New("listings", listingColumns(), params).
		Where("is_deleted = ?", false).
		Search("title").
		Filter().
		Sort().
		Paginate()

	sql, args := b.SelectSQL()
	assert.Equal(t,
		"SELECT * FROM listings WHERE is_deleted = ? AND (title ILIKE ?) AND price >= ? "+
			"ORDER BY created_at DESC LIMIT 5 OFFSET 5", sql)
	assert.Equal(t, []interface{}{false, "%villa%", int64(50)}, args)
}
