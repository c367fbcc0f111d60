package controller

import (
	"net/http"

	"github.com/canopy-network/tokenscope/pkg/db/chain"
	"github.com/canopy-network/tokenscope/pkg/history"
	"github.com/gorilla/mux"
)

type accountTransactionsResponse struct {
	Transactions []*history.RPCTransaction `json:"transactions"`
	Total        int                       `json:"total"`
	Offset       int                       `json:"offset"`
	Limit        int                       `json:"limit"`
	HasMore      bool                      `json:"hasMore"`
	Error        *string                   `json:"error"`
}

// HandleAccountTransactions returns the merged direct and token-transfer history of an account.
// Query parameters:
//   - offset: rows to skip (default 0)
//   - limit: page size (default 50, max 1000)
//   - direction: "sent", "received" or "all" (default "all")
//   - order: "asc" or "desc" by block number then hash (default "desc")
func (c *Controller) HandleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.App.History.ListAccountTransactions(r.Context(), history.Query{
		ChainID:   chainID,
		Address:   mux.Vars(r)["address"],
		Offset:    page.Offset,
		Limit:     page.Limit,
		Direction: chain.Direction(page.Direction),
		Order:     chain.SortOrder(page.Order),
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accountTransactionsResponse{
		Transactions: result.Transactions,
		Total:        result.Total,
		Offset:       result.Offset,
		Limit:        result.Limit,
		HasMore:      result.HasMore,
	})
}
