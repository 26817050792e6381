// Package kommo implements the crm.Source boundary against the Kommo v4 API.
package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm"
	"github.com/iWorld-y/deal_radar/internal/logger"
)

// Client is a Kommo v4 API client.
type Client struct {
	baseURL    string
	token      string
	pageLimit  int
	fetchNotes bool
	client     *http.Client
}

// NewClient creates a Kommo client from configuration.
func NewClient(cfg config.KommoConfig) *Client {
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.AccessToken,
		pageLimit:  pageLimit,
		fetchNotes: cfg.FetchNotes,
		client:     &http.Client{Timeout: 20 * time.Second},
	}
}

var _ crm.Source = (*Client)(nil)

// lead is the subset of the Kommo lead payload the pipeline needs.
// Timestamps are unix seconds.
type lead struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	StatusID          int     `json:"status_id"`
	PipelineID        int     `json:"pipeline_id"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
	ResponsibleUserID int     `json:"responsible_user_id"`
}

type leadsPage struct {
	Embedded struct {
		Leads []lead `json:"leads"`
	} `json:"_embedded"`
}

type notesPage struct {
	Embedded struct {
		Notes []struct {
			Text   string `json:"text"`
			Params struct {
				Text string `json:"text"`
			} `json:"params"`
		} `json:"notes"`
	} `json:"_embedded"`
}

// FetchDeals pages through /api/v4/leads until limit leads are collected or
// the API runs out, and maps each lead to the canonical raw field set. The
// per-lead last note is fetched only when configured, since it costs one
// extra request per lead.
func (c *Client) FetchDeals(ctx context.Context, limit int) ([]map[string]any, error) {
	if c.baseURL == "" || c.token == "" {
		return nil, fmt.Errorf("kommo base_url and access_token must be set")
	}

	var out []map[string]any
	page := 1
	remain := limit
	for remain > 0 {
		perPage := c.pageLimit
		if remain < perPage {
			perPage = remain
		}

		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(perPage))
		params.Set("with", "contacts")

		var pl leadsPage
		if err := c.get(ctx, "/api/v4/leads", params, &pl); err != nil {
			return nil, fmt.Errorf("fetch leads page %d: %w", page, err)
		}
		if len(pl.Embedded.Leads) == 0 {
			break
		}

		for _, l := range pl.Embedded.Leads {
			raw := map[string]any{
				crm.FieldID:     strconv.Itoa(l.ID),
				crm.FieldName:   l.Name,
				crm.FieldStage:  strconv.Itoa(l.StatusID),
				crm.FieldAmount: l.Price,
				crm.FieldOwner:  strconv.Itoa(l.ResponsibleUserID),
			}
			if l.CreatedAt > 0 {
				raw[crm.FieldCreatedAt] = l.CreatedAt
			}
			if l.UpdatedAt > 0 {
				// Kommo does not expose stage entry; updated_at is the
				// closest activity marker the API gives us.
				raw[crm.FieldLastActivityAt] = l.UpdatedAt
			}
			if c.fetchNotes {
				note, err := c.lastNote(ctx, l.ID)
				if err != nil {
					logger.Log.Warnf("fetch last note for lead %d: %v", l.ID, err)
				} else if note != "" {
					raw[crm.FieldLastMessage] = note
				}
			}
			out = append(out, raw)
		}

		remain -= len(pl.Embedded.Leads)
		page++
	}
	return out, nil
}

// lastNote returns the text of the lead's most recent note, if any.
func (c *Client) lastNote(ctx context.Context, leadID int) (string, error) {
	params := url.Values{}
	params.Set("limit", "1")
	params.Set("page", "1")
	params.Set("order[created_at]", "desc")

	var np notesPage
	if err := c.get(ctx, fmt.Sprintf("/api/v4/leads/%d/notes", leadID), params, &np); err != nil {
		return "", err
	}
	if len(np.Embedded.Notes) == 0 {
		return "", nil
	}
	note := np.Embedded.Notes[0]
	if note.Params.Text != "" {
		return note.Params.Text, nil
	}
	return note.Text, nil
}

var _ crm.TaskCreator = (*Client)(nil)

// CreateTask creates a follow-up task bound to a lead, so the recommended
// action can be pushed back into the CRM.
func (c *Client) CreateTask(ctx context.Context, dealID string, text string, completeTill time.Time) error {
	leadID, err := strconv.Atoi(dealID)
	if err != nil {
		return fmt.Errorf("kommo deal id must be numeric: %q", dealID)
	}

	task := map[string]any{
		"text":          text,
		"complete_till": completeTill.Unix(),
		"entity_id":     leadID,
		"entity_type":   "leads",
	}

	payload, err := json.Marshal([]map[string]any{task})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v4/tasks", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("create task failed: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// get performs a GET with up to 3 attempts. Only transport errors, rate
// limiting and 5xx are retried; a 401 or 404 will not get better on the
// second try.
func (c *Client) get(ctx context.Context, path string, params url.Values, v any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		retryable := false
		func() {
			defer resp.Body.Close()
			switch {
			// 204 means an empty page, not an error.
			case resp.StatusCode == http.StatusNoContent:
				lastErr = nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
				lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, body)
				retryable = true
			case resp.StatusCode >= 300:
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
				lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, body)
			default:
				lastErr = json.NewDecoder(resp.Body).Decode(v)
			}
		}()
		if lastErr == nil {
			return nil
		}
		if !retryable {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "deal-radar/1.0")
}
