package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/koopa0/system-design/restaurant-catalog/internal/catalog"
	apperrors "github.com/koopa0/system-design/restaurant-catalog/pkg/errors"
)

const maxBodyBytes = 1 << 20

// 請求結構
type createRestaurantRequest struct {
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Cuisines []string `json:"cuisines"`
}

type addReviewRequest struct {
	Rating *float64 `json:"rating"`
	Review string   `json:"review"`
}

// decodeJSON 解析請求本體；未知欄位直接忽略，多餘內容視為錯誤
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperrors.Invalid("invalid request body").WithDetails(err.Error())
	}
	if dec.More() {
		return apperrors.Invalid("invalid request body").WithDetails("unexpected trailing data")
	}
	return nil
}

func (req *createRestaurantRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)

	if req.Name == "" {
		return apperrors.Invalid("name is required")
	}
	if req.Location == "" {
		return apperrors.Invalid("location is required")
	}
	// 缺少或為 null 時 Cuisines 為 nil；空陣列可以
	if req.Cuisines == nil {
		return apperrors.Invalid("cuisines is required")
	}
	for i, c := range req.Cuisines {
		c = strings.TrimSpace(c)
		if c == "" {
			return apperrors.Invalid(fmt.Sprintf("cuisines[%d] must not be empty", i))
		}
		req.Cuisines[i] = c
	}
	return nil
}

func (req *addReviewRequest) validate(minRating, maxRating float64) error {
	if req.Rating == nil {
		return apperrors.Invalid("rating is required")
	}
	if r := *req.Rating; r < minRating || r > maxRating {
		return apperrors.Invalid(fmt.Sprintf("rating must be between %g and %g", minRating, maxRating))
	}
	if strings.TrimSpace(req.Review) == "" {
		return apperrors.Invalid("review is required")
	}
	return nil
}

func validateDetails(d catalog.Details) error {
	if d.Links == nil {
		return apperrors.Invalid("links is required")
	}
	for i, l := range d.Links {
		if strings.TrimSpace(l.Name) == "" {
			return apperrors.Invalid(fmt.Sprintf("links[%d].name is required", i))
		}
		if strings.TrimSpace(l.URL) == "" {
			return apperrors.Invalid(fmt.Sprintf("links[%d].url is required", i))
		}
	}
	if strings.TrimSpace(d.Contact.Phone) == "" {
		return apperrors.Invalid("contact.phone is required")
	}
	if addr, err := mail.ParseAddress(d.Contact.Email); err != nil || addr.Address != d.Contact.Email {
		return apperrors.Invalid("contact.email is not a valid email address")
	}
	return nil
}

// pagination 解析 page / limit；缺省為第 1 頁與預設頁大小
func (h *Handler) pagination(r *http.Request) (page, limit int, err error) {
	page, err = positiveQuery(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err = positiveQuery(r, "limit", h.limits.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if limit > h.limits.MaxPageSize {
		return 0, 0, apperrors.Invalid(fmt.Sprintf("limit must not exceed %d", h.limits.MaxPageSize))
	}
	return page, limit, nil
}

func positiveQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Invalid(name + " must be a positive integer")
	}
	return n, nil
}
