package controller

import (
	"net/http"

	"github.com/canopy-network/tokenscope/pkg/ledger"
	"github.com/canopy-network/tokenscope/pkg/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type tokenResponse struct {
	Address     string  `json:"address"`
	Symbol      *string `json:"symbol"`
	Decimals    *uint8  `json:"decimals"`
	Holders     int     `json:"holders"`
	TotalSupply string  `json:"totalSupply"`
}

// HandleToken returns holder count and supply from the ledger, plus symbol and decimals
// when the chain has an RPC endpoint. Metadata failures leave symbol and decimals null.
func (c *Controller) HandleToken(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := utils.NormalizeHex(mux.Vars(r)["address"])

	// a one row page validates the address and the allow-list before touching the ledger
	page, err := c.App.Holders.ListHolders(r.Context(), ledger.HolderQuery{
		ChainID: chainID,
		Token:   token,
		Limit:   1,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	resp := tokenResponse{
		Address:     token,
		Holders:     page.Total,
		TotalSupply: page.TotalSupply,
	}

	if c.App.Metadata != nil && c.App.Metadata.Supports(chainID) {
		meta, err := c.App.Metadata.TokenMetadata(r.Context(), chainID, token)
		if err != nil {
			c.App.Logger.Warn("Token metadata unavailable",
				zap.Uint64("chainId", chainID),
				zap.String("token", token),
				zap.Error(err))
		} else {
			resp.Symbol = &meta.Symbol
			resp.Decimals = &meta.Decimals
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
