package api

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// yearRequest addresses one year of one dataset
type yearRequest struct {
	DatasetID string `json:"datasetId" validate:"required,uuid"`
	Year      int    `json:"year" validate:"gte=1900,lte=2100"`
}

type framesRequest struct {
	yearRequest
	CommunityID int `json:"communityId" validate:"gte=0"`
}

type trendRequest struct {
	DatasetID string `json:"datasetId" validate:"required,uuid"`
	Years     []int  `json:"years" validate:"omitempty,max=50,dive,gte=1900,lte=2100"`
}

type uploadRequest struct {
	Name   string `json:"name" validate:"max=200"`
	Format string `json:"format" validate:"omitempty,oneof=auto csv csv.gz csv.zst xlsx sqlite"`
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := mux.Vars(r)[name]
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func (h *Handlers) parseYearRequest(r *http.Request) (yearRequest, error) {
	year, err := pathInt(r, "year")
	if err != nil {
		return yearRequest{}, err
	}
	req := yearRequest{DatasetID: mux.Vars(r)["datasetId"], Year: year}
	return req, h.validate.Struct(req)
}

func (h *Handlers) parseFramesRequest(r *http.Request) (framesRequest, error) {
	yr, err := h.parseYearRequest(r)
	if err != nil {
		return framesRequest{}, err
	}
	cid, err := pathInt(r, "communityId")
	if err != nil {
		return framesRequest{}, err
	}
	req := framesRequest{yearRequest: yr, CommunityID: cid}
	return req, h.validate.Struct(req)
}

// parseTrendRequest reads ?years=2019,2020 or repeated ?years= values
func (h *Handlers) parseTrendRequest(r *http.Request) (trendRequest, error) {
	req := trendRequest{DatasetID: mux.Vars(r)["datasetId"]}
	for _, raw := range r.URL.Query()["years"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			year, err := strconv.Atoi(part)
			if err != nil {
				return req, fmt.Errorf("invalid year %q", part)
			}
			req.Years = append(req.Years, year)
		}
	}
	return req, h.validate.Struct(req)
}
