package syncstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPRemote talks to the coordinator's participant endpoints. ChainSlug
// must be set for chain chapter ops; chapter item ids are "slug:number".
type HTTPRemote struct {
	BaseURL  string
	HolderID string
	// Token, when set, authenticates as an account instead of a device.
	Token  string
	Client *http.Client
}

func NewHTTPRemote(baseURL, holderID string) *HTTPRemote {
	return &HTTPRemote{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HolderID: holderID,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type dayPayload struct {
	Day         string           `json:"day"`
	Singles     StringSet        `json:"singles"`
	Repeatables map[string]int64 `json:"repeatables"`
}

func (r *HTTPRemote) Fetch(ctx context.Context, day string) (DayProgress, error) {
	u := fmt.Sprintf("%s/api/participant/progress?day=%s", r.BaseURL, url.QueryEscape(day))
	var out dayPayload
	if err := r.do(ctx, http.MethodGet, u, nil, &out); err != nil {
		return DayProgress{}, err
	}
	return asProgress(out), nil
}

func (r *HTTPRemote) Push(ctx context.Context, day string, p DayProgress) (DayProgress, error) {
	body := dayPayload{Day: day, Singles: p.Singles, Repeatables: p.Repeatables}
	var out dayPayload
	u := r.BaseURL + "/api/participant/progress"
	if err := r.do(ctx, http.MethodPut, u, body, &out); err != nil {
		return DayProgress{}, err
	}
	return asProgress(out), nil
}

func (r *HTTPRemote) CompleteChapter(ctx context.Context, op Op) error {
	slug, chapter, err := SplitChainItem(op.ItemID)
	if err != nil {
		return err
	}
	body := map[string]any{
		"chapterNumber":  chapter,
		"idempotencyKey": op.IdempotencyKey,
	}
	u := fmt.Sprintf("%s/api/chains/%s/complete", r.BaseURL, url.PathEscape(slug))
	return r.do(ctx, http.MethodPost, u, body, nil)
}

func (r *HTTPRemote) do(ctx context.Context, method, u string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	} else {
		req.Header.Set("X-Device-ID", r.HolderID)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("syncstate: %s %s: status %d: %s", method, u, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func asProgress(p dayPayload) DayProgress {
	out := NewDayProgress()
	for it := range p.Singles {
		out.Singles[it] = struct{}{}
	}
	for k, v := range p.Repeatables {
		out.Repeatables[k] = v
	}
	return out
}

// ChainItemID builds the repeatable item id for a chain chapter.
func ChainItemID(slug string, chapter int) string {
	return slug + ":" + strconv.Itoa(chapter)
}

// SplitChainItem parses "slug:number".
func SplitChainItem(itemID string) (string, int, error) {
	i := strings.LastIndexByte(itemID, ':')
	if i <= 0 || i == len(itemID)-1 {
		return "", 0, fmt.Errorf("syncstate: bad chain item id %q", itemID)
	}
	n, err := strconv.Atoi(itemID[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("syncstate: bad chain item id %q: %w", itemID, err)
	}
	return itemID[:i], n, nil
}
