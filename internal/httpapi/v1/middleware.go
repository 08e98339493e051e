package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/unrolled/secure"

	"github.com/tinoosan/bizledger/internal/ledger"
	"github.com/tinoosan/bizledger/internal/service/account"
)

type ctxKey string

const (
	ctxKeyPostAccount  ctxKey = "validatedPostAccount"
	ctxKeyPatchAccount ctxKey = "validatedPatchAccount"
	ctxKeyCondition    ctxKey = "validatedCondition"
	ctxKeyDistribute   ctxKey = "validatedDistribute"
	ctxKeyPostSale     ctxKey = "validatedPostSale"
	ctxKeyPreview      ctxKey = "validatedPreview"
	ctxKeyPostEntry    ctxKey = "validatedPostEntry"
)

// decodeAndValidate decodes a JSON body strictly into dst and runs its
// struct tags. It writes the error response itself and reports success.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !requireJSON(w, r) {
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		badRequest(w, validationMessage(err))
		return false
	}
	return true
}

func withValue(r *http.Request, key ctxKey, v any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), key, v))
}

// validatePostAccount parses POST /accounts into an account.CreateInput.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postAccountRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			req.Name = strings.TrimSpace(req.Name)
			if req.ParentID == nil && req.Type == "" {
				badRequest(w, "type: required for top-level accounts")
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyPostAccount, toCreateInput(req)))
		})
	}
}

// validatePatchAccount parses PATCH /accounts/{id} into an account.UpdateInput.
func (s *Server) validatePatchAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req patchAccountRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyPatchAccount, toUpdateInput(req)))
		})
	}
}

// validateCondition parses the body shared by POST and PUT on payment conditions.
func (s *Server) validateCondition() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req conditionRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyCondition, toConditionDomain(req)))
		})
	}
}

func (s *Server) validateDistribute() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req distributeRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyDistribute, req))
		})
	}
}

func (s *Server) validatePostSale() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postSaleRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyPostSale, toSaleDomain(req)))
		})
	}
}

func (s *Server) validatePreview() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req previewRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			if req.Date.IsZero() {
				badRequest(w, "date: required")
				return
			}
			if req.Currency == "" {
				req.Currency = s.currency
			}
			next.ServeHTTP(w, withValue(r, ctxKeyPreview, req))
		})
	}
}

// validatePostEntry converts POST /entries into a ledger.JournalEntry. Account
// postability is checked by the journal service.
func (s *Server) validatePostEntry() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postEntryRequest
			if !s.decodeAndValidate(w, r, &req) {
				return
			}
			currency := strings.ToUpper(req.Currency)
			if currency == "" {
				currency = s.currency
			}
			entry, err := toEntryDomain(req, currency)
			if err != nil {
				badRequest(w, err.Error())
				return
			}
			next.ServeHTTP(w, withValue(r, ctxKeyPostEntry, entry))
		})
	}
}

// securityHeaders applies the standard browser hardening headers.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		STSSeconds:            stsSeconds(production),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}

// Handlers read the values stored above with these accessors.

func createInputFrom(r *http.Request) (account.CreateInput, bool) {
	in, ok := r.Context().Value(ctxKeyPostAccount).(account.CreateInput)
	return in, ok
}

func updateInputFrom(r *http.Request) (account.UpdateInput, bool) {
	in, ok := r.Context().Value(ctxKeyPatchAccount).(account.UpdateInput)
	return in, ok
}

func conditionFrom(r *http.Request) (ledger.PaymentCondition, bool) {
	c, ok := r.Context().Value(ctxKeyCondition).(ledger.PaymentCondition)
	return c, ok
}

func saleFrom(r *http.Request) (ledger.Sale, bool) {
	sale, ok := r.Context().Value(ctxKeyPostSale).(ledger.Sale)
	return sale, ok
}

func entryFrom(r *http.Request) (ledger.JournalEntry, bool) {
	e, ok := r.Context().Value(ctxKeyPostEntry).(ledger.JournalEntry)
	return e, ok
}
