package fopbridge_test

import (
	"net/http"
	"testing"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/fopbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type encoder interface {
	Encode() ([]byte, string, error)
	HTTPStatus() int
}

func TestEnvelope_Encode(t *testing.T) {
	tests := []struct {
		name   string
		enc    encoder
		body   string
		status int
	}{
		{"record", fopbridge.NewRecordResponse(map[string]int{"a": 1}), `{"success":true,"data":{"a":1}}`, http.StatusOK},
		{"created", fopbridge.NewCreatedResponse("x"), `{"success":true,"data":"x"}`, http.StatusCreated},
		{"list", fopbridge.NewListResponse([]int{1, 2}), `{"success":true,"count":2,"data":[1,2]}`, http.StatusOK},
		{"nil list", fopbridge.NewListResponse[int](nil), `{"success":true,"count":0,"data":[]}`, http.StatusOK},
		{"empty", fopbridge.NewEmptyResponse(), `{"success":true,"data":{}}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, ct, err := tt.enc.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.body, string(data))
			assert.Contains(t, ct, "application/json")
			assert.Equal(t, tt.status, tt.enc.HTTPStatus())
		})
	}
}
