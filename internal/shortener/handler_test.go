package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sundayezeilo/shortlinks/internal/errx"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
)

/***************
 * Mocks
 ***************/

type mockService struct {
	createLinkFunc     func(ctx context.Context, req CreateLinkRequest) (CreatedLink, error)
	resolveTargetFunc  func(ctx context.Context, shortCode string) (string, error)
	getLinkDetailsFunc func(ctx context.Context, shortCode string) (LinkDetails, error)
	listLinksFunc      func(ctx context.Context, pageIndex, pageSize int) (Page, error)
}

func (m *mockService) CreateLink(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
	if m.createLinkFunc != nil {
		return m.createLinkFunc(ctx, req)
	}
	return CreatedLink{}, errors.New("not implemented")
}

func (m *mockService) ResolveTarget(ctx context.Context, shortCode string) (string, error) {
	if m.resolveTargetFunc != nil {
		return m.resolveTargetFunc(ctx, shortCode)
	}
	return "", errors.New("not implemented")
}

func (m *mockService) GetLinkDetails(ctx context.Context, shortCode string) (LinkDetails, error) {
	if m.getLinkDetailsFunc != nil {
		return m.getLinkDetailsFunc(ctx, shortCode)
	}
	return LinkDetails{}, errors.New("not implemented")
}

func (m *mockService) ListLinks(ctx context.Context, pageIndex, pageSize int) (Page, error) {
	if m.listLinksFunc != nil {
		return m.listLinksFunc(ctx, pageIndex, pageSize)
	}
	return Page{}, errors.New("not implemented")
}

/***************
 * Helpers
 ***************/

func newTestMux(svc Service) *http.ServeMux {
	h := NewHandler(HandlerConfig{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:     fixedClock(testNow),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /links", h.CreateLink)
	mux.HandleFunc("GET /links", h.ListLinks)
	mux.HandleFunc("GET /links/{code}", h.GetLinkDetails)
	mux.HandleFunc("GET /r/{code}", h.ResolveLink)
	return mux
}

func serve(t *testing.T, svc Service, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	newTestMux(svc).ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) httpx.ErrorResponse {
	t.Helper()

	var resp httpx.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

/***************
 * CreateLink
 ***************/

func TestHandlerCreateLink(t *testing.T) {
	t.Run("creates link", func(t *testing.T) {
		var got CreateLinkRequest
		svc := &mockService{
			createLinkFunc: func(ctx context.Context, req CreateLinkRequest) (CreatedLink, error) {
				got = req
				return CreatedLink{
					Link: Link{
						ID:        9,
						TargetURL: req.TargetURL,
						ShortCode: req.CustomAlias,
						CreatedAt: testNow,
						ExpiresAt: *req.ExpiresAt,
					},
					ShortURL: testDomain + req.CustomAlias,
				}, nil
			},
		}

		rr := serve(t, svc, http.MethodPost, "/links",
			`{"target_url":"https://example.com","custom_alias":"promo","expires_at":"2025-07-01T00:00:00Z"}`)

		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusCreated, rr.Body.String())
		}
		if got.CustomAlias != "promo" || got.ExpiresAt == nil {
			t.Errorf("service request = %+v", got)
		}

		var resp CreateLinkResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.ShortURL != testDomain+"promo" || resp.ShortCode != "promo" || resp.ID != 9 {
			t.Errorf("response = %+v", resp)
		}
		if want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC); !resp.ExpiresAt.Equal(want) {
			t.Errorf("expires_at = %v, want %v", resp.ExpiresAt, want)
		}
	})

	t.Run("rejects bad requests before the service", func(t *testing.T) {
		tests := []struct {
			name     string
			body     string
			wantCode string
		}{
			{"empty body", "", "invalid_request"},
			{"malformed json", `{"target_url":`, "invalid_request"},
			{"unknown field", `{"target_url":"https://example.com","slug":"x"}`, "invalid_request"},
			{"missing url", `{"custom_alias":"promo"}`, "invalid_input"},
			{"bad alias", `{"target_url":"https://example.com","custom_alias":"a b"}`, "invalid_input"},
			{"past expiry", `{"target_url":"https://example.com","expires_at":"2020-01-01T00:00:00Z"}`, "invalid_input"},
			{"expiry equal to now", `{"target_url":"https://example.com","expires_at":"2025-06-01T12:00:00Z"}`, "invalid_input"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &mockService{
					createLinkFunc: func(context.Context, CreateLinkRequest) (CreatedLink, error) {
						t.Error("service should not be called")
						return CreatedLink{}, nil
					},
				}

				rr := serve(t, svc, http.MethodPost, "/links", tt.body)
				if rr.Code != http.StatusBadRequest {
					t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
				}
				if resp := decodeError(t, rr); resp.Error != tt.wantCode {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
				}
			})
		}
	})

	t.Run("maps service errors", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{
				name:       "invalid url",
				err:        errx.E("svc", errx.Invalid, fmt.Errorf("%w: malformed url", ErrInvalidTargetURL)),
				wantStatus: http.StatusBadRequest,
				wantCode:   "invalid_url",
			},
			{
				name:       "alias conflict",
				err:        errx.E("svc", errx.Conflict, &AliasConflictError{Alias: "promo"}),
				wantStatus: http.StatusConflict,
				wantCode:   "alias_conflict",
			},
			{
				name:       "internal",
				err:        errx.E("svc", errx.Internal, errors.New("db down: secret detail")),
				wantStatus: http.StatusInternalServerError,
				wantCode:   "internal_error",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &mockService{
					createLinkFunc: func(context.Context, CreateLinkRequest) (CreatedLink, error) {
						return CreatedLink{}, tt.err
					},
				}

				rr := serve(t, svc, http.MethodPost, "/links", `{"target_url":"https://example.com"}`)
				if rr.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
				}
				resp := decodeError(t, rr)
				if resp.Error != tt.wantCode {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
				}
				if strings.Contains(resp.Message, "secret") {
					t.Errorf("message leaks internals: %q", resp.Message)
				}
			})
		}
	})

	t.Run("alias conflict carries the alias", func(t *testing.T) {
		svc := &mockService{
			createLinkFunc: func(context.Context, CreateLinkRequest) (CreatedLink, error) {
				return CreatedLink{}, errx.E("svc", errx.Conflict, &AliasConflictError{Alias: "promo"})
			},
		}

		rr := serve(t, svc, http.MethodPost, "/links", `{"target_url":"https://example.com","custom_alias":"promo"}`)
		resp := decodeError(t, rr)

		details, ok := resp.Details.(map[string]any)
		if !ok || details["alias"] != "promo" {
			t.Errorf("details = %#v, want alias promo", resp.Details)
		}
	})
}

/***************
 * ResolveLink
 ***************/

func TestHandlerResolveLink(t *testing.T) {
	t.Run("redirects to target", func(t *testing.T) {
		svc := &mockService{
			resolveTargetFunc: func(_ context.Context, code string) (string, error) {
				if code != "promo" {
					t.Errorf("code = %q, want promo", code)
				}
				return "https://example.com/landing", nil
			},
		}

		rr := serve(t, svc, http.MethodGet, "/r/promo", "")
		if rr.Code != http.StatusFound {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusFound)
		}
		if loc := rr.Header().Get("Location"); loc != "https://example.com/landing" {
			t.Errorf("Location = %q", loc)
		}
		if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", cc)
		}
	})

	t.Run("not found and expired are distinct", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{"not found", errx.E("svc", errx.NotFound, ErrLinkNotFound), http.StatusNotFound, "not_found"},
			{"expired", errx.E("svc", errx.Expired, ErrLinkExpired), http.StatusGone, "expired"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &mockService{
					resolveTargetFunc: func(context.Context, string) (string, error) { return "", tt.err },
				}

				rr := serve(t, svc, http.MethodGet, "/r/promo", "")
				if rr.Code != tt.wantStatus {
					t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
				}
				if resp := decodeError(t, rr); resp.Error != tt.wantCode {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantCode)
				}
			})
		}
	})

	t.Run("malformed code is not found without a lookup", func(t *testing.T) {
		svc := &mockService{
			resolveTargetFunc: func(context.Context, string) (string, error) {
				t.Error("service should not be called")
				return "", nil
			},
		}

		rr := serve(t, svc, http.MethodGet, "/r/a%21b", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

/***************
 * GetLinkDetails
 ***************/

func TestHandlerGetLinkDetails(t *testing.T) {
	accessed := testNow.Add(-time.Hour)
	svc := &mockService{
		getLinkDetailsFunc: func(_ context.Context, code string) (LinkDetails, error) {
			if code == "missing" {
				return LinkDetails{}, errx.E("svc", errx.NotFound, ErrLinkNotFound)
			}
			return LinkDetails{
				ShortCode:      code,
				ShortURL:       testDomain + code,
				TargetURL:      "https://example.com",
				CreatedAt:      testNow.Add(-48 * time.Hour),
				ExpiresAt:      testNow.Add(-time.Minute),
				ClickCount:     17,
				LastAccessedAt: &accessed,
				Status:         StatusExpired,
			}, nil
		},
	}

	t.Run("returns details including expired status", func(t *testing.T) {
		rr := serve(t, svc, http.MethodGet, "/links/promo", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
		}

		var resp map[string]any
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["status"] != "EXPIRED" {
			t.Errorf("status = %v, want EXPIRED", resp["status"])
		}
		if resp["click_count"] != float64(17) {
			t.Errorf("click_count = %v, want 17", resp["click_count"])
		}
		if resp["short_url"] != testDomain+"promo" {
			t.Errorf("short_url = %v", resp["short_url"])
		}
		if _, ok := resp["last_accessed_at"].(string); !ok {
			t.Errorf("last_accessed_at = %v, want timestamp", resp["last_accessed_at"])
		}
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		rr := serve(t, svc, http.MethodGet, "/links/missing", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

/***************
 * ListLinks
 ***************/

func TestHandlerListLinks(t *testing.T) {
	t.Run("defaults and clamps paging", func(t *testing.T) {
		tests := []struct {
			name     string
			query    string
			wantPage int
			wantSize int
		}{
			{"defaults", "", 0, DefaultPageSize},
			{"explicit", "?page=3&size=5", 3, 5},
			{"size clamped", "?size=500", 0, MaxPageSize},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var gotPage, gotSize int
				svc := &mockService{
					listLinksFunc: func(_ context.Context, page, size int) (Page, error) {
						gotPage, gotSize = page, size
						return Page{Items: []LinkDetails{}, PageIndex: page, PageSize: size}, nil
					},
				}

				rr := serve(t, svc, http.MethodGet, "/links"+tt.query, "")
				if rr.Code != http.StatusOK {
					t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
				}
				if gotPage != tt.wantPage || gotSize != tt.wantSize {
					t.Errorf("ListLinks(%d, %d), want (%d, %d)", gotPage, gotSize, tt.wantPage, tt.wantSize)
				}
			})
		}
	})

	t.Run("renders page", func(t *testing.T) {
		svc := &mockService{
			listLinksFunc: func(_ context.Context, page, size int) (Page, error) {
				return Page{
					Items:      []LinkDetails{{ShortCode: "abc", Status: StatusActive}},
					PageIndex:  page,
					PageSize:   size,
					TotalItems: 21,
					TotalPages: 2,
				}, nil
			},
		}

		rr := serve(t, svc, http.MethodGet, "/links?page=1", "")

		var resp ListLinksResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Page != 1 || resp.Size != DefaultPageSize || resp.TotalItems != 21 || resp.TotalPages != 2 {
			t.Errorf("response = %+v", resp)
		}
		if len(resp.Items) != 1 || resp.Items[0].ShortCode != "abc" {
			t.Errorf("items = %+v", resp.Items)
		}
	})

	t.Run("bad parameters are 400", func(t *testing.T) {
		tests := []struct {
			name  string
			query string
			err   error
		}{
			{"non-integer page", "?page=abc", nil},
			{"non-integer size", "?size=ten", nil},
			{"negative page from service", "?page=-1", errx.E("svc", errx.Invalid, errors.New("page must not be negative"))},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := &mockService{
					listLinksFunc: func(context.Context, int, int) (Page, error) {
						if tt.err == nil {
							t.Error("service should not be called")
						}
						return Page{}, tt.err
					},
				}

				rr := serve(t, svc, http.MethodGet, "/links"+tt.query, "")
				if rr.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
				}
			})
		}
	})
}

/***************
 * Request validation
 ***************/

func TestValidateCreateRequest(t *testing.T) {
	future := testNow.Add(time.Hour)
	past := testNow.Add(-time.Hour)

	tests := []struct {
		name    string
		req     HTTPCreateLinkRequest
		wantErr bool
	}{
		{"url only", HTTPCreateLinkRequest{TargetURL: "https://example.com"}, false},
		{"url and alias", HTTPCreateLinkRequest{TargetURL: "https://example.com", CustomAlias: "my-link"}, false},
		{"blank alias is ignored", HTTPCreateLinkRequest{TargetURL: "https://example.com", CustomAlias: "  "}, false},
		{"future expiry", HTTPCreateLinkRequest{TargetURL: "https://example.com", ExpiresAt: &future}, false},
		{"empty url", HTTPCreateLinkRequest{}, true},
		{"whitespace url", HTTPCreateLinkRequest{TargetURL: "   "}, true},
		{"url too long", HTTPCreateLinkRequest{TargetURL: "https://example.com/" + strings.Repeat("x", MaxURLLength)}, true},
		{"short alias", HTTPCreateLinkRequest{TargetURL: "https://example.com", CustomAlias: "ab"}, true},
		{"past expiry", HTTPCreateLinkRequest{TargetURL: "https://example.com", ExpiresAt: &past}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCreateRequest(tt.req, testNow)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateCreateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
