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
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"TableWatch/entity"
	"TableWatch/internal/config"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
)

const (
	resyBaseURL = "https://api.resy.com"
	resySite    = "https://resy.com"
)

// Resy is a minimal client of the Resy consumer api.
// It needs an api key and an auth token captured from a browser session.
type Resy struct {
	hc     *http.Client
	base   string
	apiKey string
	token  string
	city   string
	// url slug to numeric venue id
	venues sync.Map
	log    *slog.Logger
}

func NewResy(conf config.Provider, log *slog.Logger) *Resy {
	base := resyBaseURL
	if conf.BaseURL != "" {
		base = conf.BaseURL
	}
	city := conf.City
	if city == "" {
		city = "ny"
	}
	return &Resy{
		hc:     &http.Client{Timeout: time.Duration(conf.Timeout) * time.Second},
		base:   strings.TrimRight(base, "/"),
		apiKey: conf.ApiKey,
		token:  conf.Token,
		city:   city,
		log:    log.With(sl.Module("provider.resy")),
	}
}

func (r *Resy) Name() string { return entity.ProviderResy }

type resyVenue struct {
	ID struct {
		Resy int64 `json:"resy"`
	} `json:"id"`
	Name     string `json:"name"`
	URLSlug  string `json:"url_slug"`
	Locality string `json:"locality"`
	Location struct {
		Locality string `json:"locality"`
		Address  string `json:"address_1"`
		Code     string `json:"url_slug"`
	} `json:"location"`
}

func (v resyVenue) restaurant(city string) *entity.Restaurant {
	locality := v.Location.Locality
	if locality == "" {
		locality = v.Locality
	}
	if v.Location.Code != "" {
		city = v.Location.Code
	}
	return &entity.Restaurant{
		Ref:      v.URLSlug,
		Provider: entity.ProviderResy,
		Name:     v.Name,
		City:     locality,
		Address:  v.Location.Address,
		URL:      fmt.Sprintf("%s/cities/%s/venues/%s", resySite, city, v.URLSlug),
	}
}

func (r *Resy) RestaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error) {
	start := time.Now()
	restaurant, err := r.restaurantDetails(ctx, strings.TrimSpace(query))
	metrics.ObserveProviderCall(r.Name(), "details", start, err)
	return restaurant, err
}

func (r *Resy) restaurantDetails(ctx context.Context, query string) (*entity.Restaurant, error) {
	if slug, link, ok := resySlug(query); ok {
		venue, err := r.venueBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if venue != nil {
			return venue.restaurant(r.city), nil
		}
		if link {
			return nil, nil
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"query":    query,
		"per_page": 1,
		"types":    []string{"venue"},
	})
	status, body, err := r.do(ctx, http.MethodPost, "/3/venuesearch/search", "application/json", nil, payload)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("resy search http %d", status)
	}

	var res struct {
		Search struct {
			Hits []resyVenue `json:"hits"`
		} `json:"search"`
	}
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("resy parse search: %w", err)
	}
	if len(res.Search.Hits) == 0 || res.Search.Hits[0].URLSlug == "" {
		return nil, nil
	}
	venue := res.Search.Hits[0]
	r.venues.Store(venue.URLSlug, venue.ID.Resy)
	return venue.restaurant(r.city), nil
}

func (r *Resy) venueBySlug(ctx context.Context, slug string) (*resyVenue, error) {
	status, body, err := r.do(ctx, http.MethodGet, "/3/venue", "", map[string]string{
		"url_slug": slug,
		"location": r.city,
	}, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("resy venue http %d", status)
	}

	var venue resyVenue
	if err = json.Unmarshal(body, &venue); err != nil {
		return nil, fmt.Errorf("resy parse venue: %w", err)
	}
	if venue.ID.Resy == 0 {
		return nil, nil
	}
	if venue.URLSlug == "" {
		venue.URLSlug = slug
	}
	r.venues.Store(slug, venue.ID.Resy)
	return &venue, nil
}

func (r *Resy) venueID(ctx context.Context, slug string) (int64, error) {
	if id, ok := r.venues.Load(slug); ok {
		return id.(int64), nil
	}
	venue, err := r.venueBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}
	if venue == nil {
		return 0, fmt.Errorf("resy venue %q not found", slug)
	}
	return venue.ID.Resy, nil
}

func (r *Resy) CheckAvailability(ctx context.Context, ref string, c entity.Criteria) (*entity.Availability, error) {
	start := time.Now()
	availability, err := r.checkAvailability(ctx, ref, c)
	metrics.ObserveProviderCall(r.Name(), "availability", start, err)
	return availability, err
}

func (r *Resy) checkAvailability(ctx context.Context, ref string, c entity.Criteria) (*entity.Availability, error) {
	if c.PartySize <= 0 {
		return nil, errors.New("party size must be > 0")
	}
	id, err := r.venueID(ctx, ref)
	if err != nil {
		return nil, err
	}

	status, body, err := r.do(ctx, http.MethodGet, "/4/find", "", map[string]string{
		"venue_id":   strconv.FormatInt(id, 10),
		"day":        c.Date,
		"party_size": strconv.Itoa(c.PartySize),
		"lat":        "0",
		"long":       "0",
	}, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("resy find http %d", status)
	}

	var res struct {
		Results struct {
			Venues []struct {
				Slots []struct {
					Date struct {
						Start string `json:"start"`
					} `json:"date"`
					Config struct {
						Type  string `json:"type"`
						Token string `json:"token"`
					} `json:"config"`
				} `json:"slots"`
			} `json:"venues"`
		} `json:"results"`
	}
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("resy parse find: %w", err)
	}

	availability := &entity.Availability{}
	for _, venue := range res.Results.Venues {
		for _, s := range venue.Slots {
			// "2025-03-17 19:30:00"
			t, err := time.Parse("2006-01-02 15:04:05", s.Date.Start)
			if err != nil {
				r.log.Debug("skipping slot", slog.String("start", s.Date.Start), sl.Err(err))
				continue
			}
			if t.Format(entity.DateLayout) != c.Date {
				continue
			}
			availability.Slots = append(availability.Slots, entity.Slot{
				Time:  t.Format(entity.TimeLayout),
				Area:  NormalizeArea(s.Config.Type),
				Token: s.Config.Token,
			})
		}
	}
	return availability, nil
}

func (r *Resy) BookingLink(ref string, c entity.Criteria) string {
	return fmt.Sprintf("%s/cities/%s/venues/%s?date=%s&seats=%d", resySite, r.city, ref, c.Date, c.PartySize)
}

func (r *Resy) do(ctx context.Context, method, path, contentType string, query map[string]string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("user-agent", userAgent)
	req.Header.Set("origin", resySite)
	req.Header.Set("referer", resySite)
	req.Header.Set("x-origin", resySite)
	req.Header.Set("cache-control", "no-cache")
	if contentType != "" {
		req.Header.Set("content-type", contentType)
	}
	req.Header.Set("authorization", fmt.Sprintf(`ResyAPI api_key="%s"`, r.apiKey))
	if r.token != "" {
		req.Header.Set("x-resy-auth-token", r.token)
		req.Header.Set("x-resy-universal-auth", r.token)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := r.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// resySlug extracts the venue slug from a resy.com link or a bare slug.
func resySlug(query string) (slug string, link bool, ok bool) {
	if slug, ok := pathAfter(query, "resy.com", "venues"); ok {
		return slug, true, true
	}
	if strings.Contains(query, "resy.com") {
		// resy.com/cities/{city}/{slug}
		raw := query
		if !strings.Contains(raw, "://") {
			raw = "https://" + raw
		}
		if u, err := url.Parse(raw); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 3 && parts[0] == "cities" {
				return parts[2], true, true
			}
		}
		return "", true, false
	}
	// bare slugs look like "carbone" or "don-angie"
	if query != "" && strings.ToLower(query) == query && !strings.ContainsAny(query, " ./") {
		return query, false, true
	}
	return "", false, false
}
