package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/chr1sbest/pipegate/internal/config"
	"github.com/chr1sbest/pipegate/internal/model"
	"github.com/chr1sbest/pipegate/internal/runerr"
)

const HNSourceName = "hn_algolia"

// HNAlgolia queries the Hacker News Algolia search_by_date endpoint.
type HNAlgolia struct {
	cfg    config.HNConfig
	client *http.Client
}

// NewHNAlgolia builds the adapter. A nil client gets one with the configured timeout.
func NewHNAlgolia(cfg config.HNConfig, client *http.Client) *HNAlgolia {
	return &HNAlgolia{cfg: cfg, client: httpClient(client, cfg.GetTimeout())}
}

func (h *HNAlgolia) Name() string { return HNSourceName }

func (h *HNAlgolia) requestURL() (string, error) {
	u, err := url.Parse(h.cfg.APIURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("query", h.cfg.Query)
	q.Set("tags", strings.Join(h.cfg.Tags, ","))
	q.Set("hitsPerPage", strconv.Itoa(h.cfg.HitsPerPage))
	q.Set("typoTolerance", "false")
	q.Set("advancedSyntax", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (h *HNAlgolia) Fetch(ctx context.Context) ([]model.RawItem, error) {
	const op = "fetch hn_algolia"
	rawURL, err := h.requestURL()
	if err != nil {
		return nil, runerr.Transport(op, err)
	}

	var resp struct {
		Hits []model.RawItem `json:"hits"`
	}
	if err := getJSON(ctx, h.client, op, rawURL, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Hits {
		resp.Hits[i].Source = HNSourceName
	}
	return resp.Hits, nil
}
