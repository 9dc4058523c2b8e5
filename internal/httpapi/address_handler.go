package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/martxmartindia/checkout/internal/address"
	"github.com/martxmartindia/checkout/internal/domain"
)

type AddressHandler struct {
	repo    address.Repository
	pincode address.PincodeClient
	timeout time.Duration

	mu    sync.Mutex
	fills map[string]*address.AutoFill
}

func NewAddressHandler(repo address.Repository, pincode address.PincodeClient, timeout time.Duration) *AddressHandler {
	return &AddressHandler{
		repo:    repo,
		pincode: pincode,
		timeout: timeout,
		fills:   make(map[string]*address.AutoFill),
	}
}

type AddressRequestDTO struct {
	ContactName  string `json:"contact_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Type         string `json:"type"`
}

func (dto *AddressRequestDTO) toDomain(userID string) *domain.Address {
	return &domain.Address{
		UserID:       userID,
		ContactName:  dto.ContactName,
		Phone:        dto.Phone,
		Email:        dto.Email,
		AddressLine1: dto.AddressLine1,
		AddressLine2: dto.AddressLine2,
		City:         dto.City,
		State:        dto.State,
		Zip:          dto.Zip,
		Type:         domain.AddressType(dto.Type),
	}
}

// POST /api/v1/addresses
func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	addr := req.toDomain(userID)
	if errs := address.Validate(addr); len(errs) > 0 {
		respondFieldErrors(w, errs)
		return
	}

	if err := h.repo.Create(ctx, addr); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, addr)
}

// PUT /api/v1/addresses/{address_id}
func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "address_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be a positive integer")
		return
	}

	var req AddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	addr := req.toDomain(userID)
	addr.ID = id
	if errs := address.Validate(addr); len(errs) > 0 {
		respondFieldErrors(w, errs)
		return
	}

	if err := h.repo.Update(ctx, addr); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addr)
}

// DELETE /api/v1/addresses/{address_id}
func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "address_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be a positive integer")
		return
	}

	if err := h.repo.Delete(ctx, userID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/addresses
func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	addrs, err := h.repo.ListByUser(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if addrs == nil {
		addrs = []*domain.Address{}
	}
	respondJSON(w, http.StatusOK, addrs)
}

type PincodeLookupResponseDTO struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Found bool   `json:"found"`
}

// GET /api/v1/pincode-lookup?pincode=411001
//
// The lookup is advisory: a failure answers found=false with 200 so the
// client form keeps working while the resolver is down. Per-user generation
// tracking keeps a slow, superseded lookup from overwriting the result of a
// newer one.
func (h *AddressHandler) PincodeLookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	pincode := r.URL.Query().Get("pincode")
	if len(pincode) != 6 {
		respondError(w, http.StatusBadRequest, "invalid_pincode", "pincode must be 6 digits")
		return
	}

	fill := h.autoFill(userID)
	gen := fill.Next()

	loc, err := h.pincode.Lookup(ctx, pincode)
	if err == nil {
		fill.Resolve(gen, loc)
	}

	city, state := fill.Fill()
	respondJSON(w, http.StatusOK, PincodeLookupResponseDTO{
		City:  city,
		State: state,
		Found: city != "" || state != "",
	})
}

func (h *AddressHandler) autoFill(userID string) *address.AutoFill {
	h.mu.Lock()
	defer h.mu.Unlock()
	fill, ok := h.fills[userID]
	if !ok {
		fill = address.NewAutoFill()
		h.fills[userID] = fill
	}
	return fill
}
