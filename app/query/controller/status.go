package controller

import (
	"context"
	"net/http"

	"github.com/canopy-network/tokenscope/pkg/errs"
	"github.com/go-jose/go-jose/v4/json"
)

type chainStatusResponse struct {
	ChainID     uint64 `json:"chainId"`
	LatestBlock uint64 `json:"latestBlock"`
}

// HandleChainStatus reports the highest indexed block of a chain.
func (c *Controller) HandleChainStatus(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if timeout := c.App.Config.UpstreamTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	latest, err := c.App.ChainDB.LatestBlock(ctx, chainID)
	if err != nil {
		c.writeServiceError(w, r, errs.Upstream("latest block", err))
		return
	}

	writeJSON(w, http.StatusOK, chainStatusResponse{ChainID: chainID, LatestBlock: latest})
}

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.ChainDB.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	if c.App.RedisClient != nil {
		if err := c.App.RedisClient.Health(ctx); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "redis connection error"})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
