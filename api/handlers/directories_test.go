package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/submitflow/submitflow/types"
)

func TestDirectoryCRUD(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/directories", DirectoryRequest{
		Name:          "betalist",
		SubmissionURL: "https://betalist.com/submit",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created types.Directory
	decodeData(t, rec, &created)

	rec = api.do(t, http.MethodPut, "/api/v1/directories/"+created.ID.String(), DirectoryRequest{
		Name:           "betalist",
		SubmissionURL:  "https://betalist.com/submit",
		RequiresLogin:  true,
		CredentialsKey: "betalist",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated types.Directory
	decodeData(t, rec, &updated)
	assert.True(t, updated.RequiresLogin)

	rec = api.do(t, http.MethodGet, "/api/v1/directories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []types.Directory
	decodeData(t, rec, &list)
	assert.Len(t, list, 1)

	rec = api.do(t, http.MethodDelete, "/api/v1/directories/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDirectoryValidation(t *testing.T) {
	api := newTestAPI(t)

	cases := []struct {
		name string
		req  DirectoryRequest
	}{
		{"missing name", DirectoryRequest{SubmissionURL: "https://x.com/submit"}},
		{"missing url", DirectoryRequest{Name: "x"}},
		{"relative url", DirectoryRequest{Name: "x", SubmissionURL: "/submit"}},
		{"login without credentials key", DirectoryRequest{
			Name: "x", SubmissionURL: "https://x.com/submit", RequiresLogin: true,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/directories", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
