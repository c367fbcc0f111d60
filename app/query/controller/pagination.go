package controller

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const defaultLimit = 50

type pageSpec struct {
	Offset    int
	Limit     int
	Direction string
	Order     string
}

// parsePageSpec reads offset, limit, direction and order. Only the syntax is checked here;
// ranges and enumerations are checked by the services.
func parsePageSpec(r *http.Request) (pageSpec, error) {
	qs := r.URL.Query()
	page := pageSpec{
		Limit:     defaultLimit,
		Direction: qs.Get("direction"),
		Order:     qs.Get("order"),
	}

	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pageSpec{}, errInvalidLimit
		}
		page.Limit = n
	}

	if v := qs.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return pageSpec{}, errInvalidOffset
		}
		page.Offset = n
	}

	return page, nil
}

func parseChainID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errInvalidChainID
	}
	return id, nil
}

var (
	errInvalidLimit   = &parseError{msg: "invalid limit"}
	errInvalidOffset  = &parseError{msg: "invalid offset"}
	errInvalidChainID = &parseError{msg: "invalid chain id"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
