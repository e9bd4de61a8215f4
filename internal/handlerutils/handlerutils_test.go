package handlerutils

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPageOpts(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  PageOpts
	}{
		{name: "defaults", query: "", want: PageOpts{Page: 1, Limit: 20}},
		{name: "explicit", query: "page=3&limit=5", want: PageOpts{Page: 3, Limit: 5}},
		{name: "garbage falls back", query: "page=abc&limit=-1", want: PageOpts{Page: 1, Limit: 20}},
		{name: "limit is capped", query: "limit=1000", want: PageOpts{Page: 1, Limit: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, GetPageOpts(q))
		})
	}

	assert.Equal(t, uint64(10), PageOpts{Page: 3, Limit: 5}.Offset())
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](nil, 41, PageOpts{Page: 1, Limit: 20})
	assert.Equal(t, 3, p.PagesCount)
	assert.NotNil(t, p.Items)
}

func TestParseJSONRejectsUnknownFields(t *testing.T) {
	var payload struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.Error(t, ParseJSON(r, &payload))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, ParseJSON(r, &payload))
	assert.Equal(t, "a", payload.Name)
}

func TestWriteSuccessJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccessJSON(rec, http.StatusCreated, "created", map[string]int{"n": 1}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"message":"created","data":{"n":1}}`, rec.Body.String())
}
