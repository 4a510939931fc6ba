package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/zkrex/zkrex/internal/service"
	"github.com/zkrex/zkrex/internal/types"
)

type balanceItemResponse struct {
	Address       string `json:"address,omitempty"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	RawAmount     string `json:"rawAmount"`
	DisplayAmount string `json:"displayAmount"`
}

type balancesResponse struct {
	Address string                `json:"address"`
	Network string                `json:"network"`
	Items   []balanceItemResponse `json:"items"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	At      time.Time             `json:"at"`
}

// handleGetBalances returns the latest balance snapshot for an address,
// refreshing first when the snapshot belongs to a different address.
func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !types.ValidAddress(address) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid address format", map[string]interface{}{
			"address": address,
		})
		return
	}

	normalized := types.NormalizeAddress(address)
	snapshot := s.balances.Current()
	if snapshot.Address != normalized {
		snapshot = s.balances.Refresh(r.Context(), normalized)
	}

	items := snapshot.Items
	if r.URL.Query().Get("spendable") == "true" {
		items = service.Spendable(items)
	}

	resp := balancesResponse{
		Address: snapshot.Address,
		Network: string(s.network),
		Items:   make([]balanceItemResponse, 0, len(items)),
		Loading: snapshot.Loading,
		Error:   snapshot.Error,
		At:      snapshot.At,
	}
	for _, item := range items {
		raw := "0"
		if item.RawAmount != nil {
			raw = item.RawAmount.String()
		}
		resp.Items = append(resp.Items, balanceItemResponse{
			Address:       item.Address,
			Name:          item.Name,
			Symbol:        item.Symbol,
			Decimals:      item.Decimals,
			RawAmount:     raw,
			DisplayAmount: item.DisplayAmount,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}
