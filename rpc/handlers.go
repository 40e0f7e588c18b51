package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sharepool/core"
	"sharepool/core/tx"
	"sharepool/crypto"
	"sharepool/native/pool"
)

type poolView struct {
	Address       crypto.Address `json:"address"`
	Creator       crypto.Address `json:"creator"`
	Authority     crypto.Address `json:"authority"`
	Reference     crypto.Address `json:"reference"`
	Mint          crypto.Address `json:"mint"`
	Seed          string         `json:"seed"`
	Shares        string         `json:"shares"`
	Minted        string         `json:"minted"`
	Redeemed      string         `json:"redeemed"`
	Available     string         `json:"available"`
	PricePerShare string         `json:"pricePerShare"`
	Closed        bool           `json:"closed"`
	StartDate     uint64         `json:"startDate,omitempty"`
	MaturityDate  uint64         `json:"maturityDate,omitempty"`
	APY           uint8          `json:"apy"`
	CreatedAt     uint64         `json:"createdAt"`
	Name          string         `json:"name,omitempty"`
	Symbol        string         `json:"symbol,omitempty"`
	URI           string         `json:"uri,omitempty"`
}

type distributionView struct {
	Address     crypto.Address `json:"address"`
	Pool        crypto.Address `json:"pool"`
	Authority   crypto.Address `json:"authority"`
	Rewards     string         `json:"rewards"`
	Claimed     string         `json:"claimed"`
	Outstanding string         `json:"outstanding"`
	CreatedAt   uint64         `json:"createdAt"`
}

type claimView struct {
	Pool        crypto.Address `json:"pool"`
	Holder      crypto.Address `json:"holder"`
	Held        string         `json:"held"`
	Claimed     string         `json:"claimed"`
	Entitlement string         `json:"entitlement"`
	Claimable   string         `json:"claimable"`
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func addressParam(r *http.Request, name string) (crypto.Address, error) {
	raw := chi.URLParam(r, name)
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %s: %v", tx.ErrInvalidParams, name, err)
	}
	return addr, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	var ins tx.Instruction
	if err := dec.Decode(&ins); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "InvalidParams", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "InvalidParams", fmt.Sprintf("decode instruction: %v", err))
		return
	}
	receipt, err := s.ledger.Apply(r.Context(), &ins)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.ledger.Head()
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"head": fmt.Sprintf("0x%x", head)})
}

func (s *Server) handleDerivePool(w http.ResponseWriter, r *http.Request) {
	reference, err := addressParam(r, "reference")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	addr := pool.PoolAddress(reference)
	writeJSON(w, http.StatusOK, map[string]crypto.Address{
		"reference":    reference,
		"pool":         addr,
		"mint":         pool.MintAddress(addr),
		"distribution": pool.DistributionAddress(addr),
	})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "pool")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	p, err := s.ledger.Pool(addr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	price, err := pool.PricePerShare(p.Seed, p.Shares)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	view := poolView{
		Address:       p.Address,
		Creator:       p.Creator,
		Authority:     p.Authority,
		Reference:     p.Reference,
		Mint:          p.Mint,
		Seed:          u64(p.Seed),
		Shares:        u64(p.Shares),
		Minted:        u64(p.Minted),
		Redeemed:      u64(p.Redeemed),
		Available:     u64(p.Available()),
		PricePerShare: u64(price),
		Closed:        p.Closed,
		StartDate:     p.StartDate,
		MaturityDate:  p.MaturityDate,
		APY:           p.APY,
		CreatedAt:     p.CreatedAt,
	}
	if meta, err := s.ledger.Metadata(p.Mint); err == nil {
		view.Name, view.Symbol, view.URI = meta.Name, meta.Symbol, meta.URI
	} else if !errors.Is(err, core.ErrNotFound) {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	addr, err := addressParam(r, "pool")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	dist, err := s.ledger.Distribution(addr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, distributionView{
		Address:     dist.Address,
		Pool:        dist.Pool,
		Authority:   dist.Authority,
		Rewards:     u64(dist.Rewards),
		Claimed:     u64(dist.Claimed),
		Outstanding: u64(dist.Outstanding()),
		CreatedAt:   dist.CreatedAt,
	})
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	poolAddr, err := addressParam(r, "pool")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	holder, err := addressParam(r, "holder")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	p, err := s.ledger.Pool(poolAddr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	claim, err := s.ledger.HolderClaim(poolAddr, holder)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	held, err := s.ledger.Balance(p.Mint, holder)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	var rewards uint64
	if dist, err := s.ledger.Distribution(poolAddr); err == nil {
		rewards = dist.Rewards
	} else if !errors.Is(err, core.ErrNotFound) {
		s.writeLedgerError(w, r, err)
		return
	}
	entitlement, err := pool.Entitlement(rewards, held, p.Minted)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	var claimable uint64
	if entitlement > claim.Claimed {
		claimable = entitlement - claim.Claimed
	}
	writeJSON(w, http.StatusOK, claimView{
		Pool:        poolAddr,
		Holder:      holder,
		Held:        u64(held),
		Claimed:     u64(claim.Claimed),
		Entitlement: u64(entitlement),
		Claimable:   u64(claimable),
	})
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeError(w, http.StatusServiceUnavailable, "IndexerDisabled", "activity indexing is not enabled")
		return
	}
	addr, err := addressParam(r, "pool")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	query := r.URL.Query()
	var after uint64
	if raw := query.Get("after"); raw != "" {
		if after, err = strconv.ParseUint(raw, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidParams", "after must be an unsigned integer")
			return
		}
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "InvalidParams", "limit must be a non-negative integer")
			return
		}
	}
	rows, err := s.activity.ListByPool(r.Context(), addr.String(), after, limit)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pool": addr, "activity": rows})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	mint, err := addressParam(r, "mint")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	amount, err := s.ledger.Balance(mint, owner)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"owner": owner, "mint": mint, "amount": u64(amount)})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	nonce, err := s.ledger.Nonce(owner)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"owner": owner, "nonce": nonce})
}
