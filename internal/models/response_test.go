package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewListLoansResponse(t *testing.T) {
	loans := []*Loan{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	resp := NewListLoansResponse(loans)

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, 2, resp.Results)
	assert.Equal(t, loans, resp.Data.Loans)
}

func TestNewListLoansResponse_NilRendersEmptyArray(t *testing.T) {
	data, err := json.Marshal(NewListLoansResponse(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","results":0,"data":{"loans":[]}}`, string(data))
}

func TestNewCreateLoanResponse_Shape(t *testing.T) {
	req := validRequest()
	loan := req.ToLoan("id-1", testTime())

	data, err := json.Marshal(NewCreateLoanResponse(loan))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "success", decoded["status"])

	loanJSON := decoded["data"].(map[string]interface{})["loan"].(map[string]interface{})
	assert.Equal(t, "id-1", loanJSON["id"])
	assert.Equal(t, "pending", loanJSON["status"])
	assert.Equal(t, 5.5, loanJSON["interestRate"])
}

func TestNewErrorResponse(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"fail","message":"boom"}`, string(data))
}
