package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageFromRequest(t *testing.T) {
	cases := map[string]Page{
		"/x":                      {Limit: 50, Offset: 0},
		"/x?limit=10&offset=20":   {Limit: 10, Offset: 20},
		"/x?limit=5000":           {Limit: 200, Offset: 0},
		"/x?limit=-1&offset=-9":   {Limit: 50, Offset: 0},
		"/x?limit=abc&offset=xyz": {Limit: 50, Offset: 0},
	}
	for target, want := range cases {
		got := PageFromRequest(httptest.NewRequest("GET", target, nil))
		assert.Equal(t, want, got, target)
	}
}
