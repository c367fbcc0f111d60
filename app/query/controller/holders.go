package controller

import (
	"net/http"

	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/gorilla/mux"
)

// HandleTokenHolders returns a page of token holders by balance, largest first.
func (c *Controller) HandleTokenHolders(w http.ResponseWriter, r *http.Request) {
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

	result, err := c.App.Holders.ListHolders(r.Context(), ledger.HolderQuery{
		ChainID: chainID,
		Token:   mux.Vars(r)["address"],
		Offset:  page.Offset,
		Limit:   page.Limit,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
