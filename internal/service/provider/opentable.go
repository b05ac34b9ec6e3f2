package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"TableWatch/entity"
	"TableWatch/internal/config"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
)

const (
	openTableBaseURL = "https://www.opentable.com/dapi"
	openTableSite    = "https://www.opentable.com"

	defaultAvailabilityHash = "e6b87083b2dfc66e11d26f9bd6e98b8f6a9f4a3b7d0e9a2f33c9f1f6a0b9f2a1"
	autocompleteHash        = "fe1d118abd4c227750693027c2414d43014c2493f64f49bcef5a65274ce9c3c3"
)

var openTableRid = regexp.MustCompile(`(?:rid=|/restaurant/profile/)(\d+)`)

// OpenTable talks to the OpenTable web GraphQL endpoint with persisted queries.
type OpenTable struct {
	hc    *http.Client
	base  string
	token string
	hash  string
	log   *slog.Logger
}

func NewOpenTable(conf config.Provider, log *slog.Logger) *OpenTable {
	base := openTableBaseURL
	if conf.BaseURL != "" {
		base = conf.BaseURL
	}
	hash := defaultAvailabilityHash
	if strings.TrimSpace(conf.QueryHash) != "" {
		hash = conf.QueryHash
	}
	return &OpenTable{
		hc:    &http.Client{Timeout: time.Duration(conf.Timeout) * time.Second},
		base:  strings.TrimRight(base, "/"),
		token: conf.Token,
		hash:  hash,
		log:   log.With(sl.Module("provider.opentable")),
	}
}

func (o *OpenTable) Name() string { return entity.ProviderOpenTable }

func (o *OpenTable) RestaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error) {
	start := time.Now()
	restaurant, err := o.restaurantDetails(ctx, strings.TrimSpace(query))
	metrics.ObserveProviderCall(o.Name(), "details", start, err)
	return restaurant, err
}

func (o *OpenTable) restaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error) {
	term := query
	rid := ""
	if m := openTableRid.FindStringSubmatch(query); m != nil {
		rid = m[1]
	} else if _, err := strconv.Atoi(query); err == nil {
		rid = query
	} else if slug, ok := pathAfter(query, "opentable.com", "r"); ok {
		// opentable.com/r/bistro-x-new-york
		term = strings.ReplaceAll(slug, "-", " ")
	}
	if rid != "" {
		term = rid
	}

	var res struct {
		Data struct {
			Autocomplete struct {
				Results []struct {
					ID        string `json:"id"`
					Name      string `json:"name"`
					Type      string `json:"type"`
					MetroName string `json:"metroName"`
					Address   string `json:"address"`
				} `json:"autocompleteResults"`
			} `json:"autocomplete"`
		} `json:"data"`
	}
	err := o.query(ctx, "Autocomplete", autocompleteHash, map[string]any{
		"term":          term,
		"latitude":      0,
		"longitude":     0,
		"useNewVersion": true,
	}, &res)
	if err != nil {
		return nil, err
	}

	for _, hit := range res.Data.Autocomplete.Results {
		if !strings.EqualFold(hit.Type, "restaurant") {
			continue
		}
		if rid != "" && hit.ID != rid {
			continue
		}
		return &entity.Restaurant{
			Ref:      hit.ID,
			Provider: entity.ProviderOpenTable,
			Name:     hit.Name,
			City:     hit.MetroName,
			Address:  hit.Address,
			URL:      fmt.Sprintf("%s/restaurant/profile/%s", openTableSite, hit.ID),
		}, nil
	}
	return nil, nil
}

func (o *OpenTable) CheckAvailability(ctx context.Context, ref string, c entity.Criteria) (*entity.Availability, error) {
	start := time.Now()
	availability, err := o.checkAvailability(ctx, ref, c)
	metrics.ObserveProviderCall(o.Name(), "availability", start, err)
	return availability, err
}

func (o *OpenTable) checkAvailability(ctx context.Context, ref string, c entity.Criteria) (*entity.Availability, error) {
	if ref == "" {
		return nil, errors.New("restaurant id is required")
	}
	if c.PartySize <= 0 {
		return nil, errors.New("party size must be > 0")
	}
	rid, err := strconv.Atoi(ref)
	if err != nil {
		return nil, fmt.Errorf("restaurant id %q: %w", ref, err)
	}

	var res struct {
		Data struct {
			Availability []struct {
				AvailabilityDays []struct {
					Slots []struct {
						IsAvailable           bool     `json:"isAvailable"`
						ReservationDateTime   string   `json:"reservationDateTime"`
						SlotAvailabilityToken string   `json:"slotAvailabilityToken"`
						Attributes            []string `json:"attributes"`
					} `json:"slots"`
				} `json:"availabilityDays"`
			} `json:"availability"`
		} `json:"data"`
	}
	err = o.query(ctx, "RestaurantsAvailability", o.hash, map[string]any{
		"restaurantIds":   []int{rid},
		"partySize":       c.PartySize,
		"date":            c.Date,
		"time":            c.Time,
		"forwardDays":     0,
		"forwardMinutes":  150,
		"backwardMinutes": 150,
		"includeOffers":   true,
	}, &res)
	if err != nil {
		return nil, err
	}

	availability := &entity.Availability{}
	for _, a := range res.Data.Availability {
		for _, d := range a.AvailabilityDays {
			for _, s := range d.Slots {
				if !s.IsAvailable {
					continue
				}
				t, ok := parseOpenTableTime(s.ReservationDateTime)
				if !ok {
					o.log.Debug("skipping slot", slog.String("start", s.ReservationDateTime))
					continue
				}
				if t.Format(entity.DateLayout) != c.Date {
					continue
				}
				availability.Slots = append(availability.Slots, entity.Slot{
					Time:  t.Format(entity.TimeLayout),
					Area:  openTableArea(s.Attributes),
					Token: s.SlotAvailabilityToken,
				})
			}
		}
	}
	return availability, nil
}

func (o *OpenTable) BookingLink(ref string, c entity.Criteria) string {
	return fmt.Sprintf("%s/restaurant/profile/%s/reserve?covers=%d&dateTime=%sT%s", openTableSite, ref, c.PartySize, c.Date, c.Time)
}

func (o *OpenTable) query(ctx context.Context, operation, hash string, variables map[string]any, out any) error {
	payload := map[string]any{
		"operationName": operation,
		"variables":     variables,
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": hash,
			},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/fe/gql?optype=query&opname=%s", o.base, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", userAgent)
	if o.token != "" {
		req.Header.Set("x-csrf-token", o.token)
	}

	resp, err := o.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("opentable %s http %d", operation, resp.StatusCode)
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("opentable parse %s: %w", operation, err)
	}
	return nil
}

func parseOpenTableTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func openTableArea(attributes []string) string {
	for _, a := range attributes {
		if strings.EqualFold(a, "default") {
			continue
		}
		if area := NormalizeArea(a); area != "" {
			return area
		}
	}
	return "indoor"
}
