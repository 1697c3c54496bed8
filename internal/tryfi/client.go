package tryfi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nsprdjake/bailey-dashboard/internal/observability"
)

const maxQueryBody = 8 << 20

// Client issues GraphQL operations against the vendor. Calls are single-shot.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a two minute timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type graphQLRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs op and decodes its data into out. The credential is sent both as
// a bearer token and as cookies since the vendor has accepted either.
func (c *Client) Query(ctx context.Context, cred Credential, op Operation, vars map[string]any, out any) (err error) {
	started := time.Now()
	defer func() { observability.ObserveVendorRequest(op.Name, started, err) }()

	payload, err := json.Marshal(graphQLRequest{OperationName: op.Name, Query: op.Document, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
	if header := cred.CookieHeader(); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &QueryError{Operation: op.Name, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQueryBody))
	if err != nil {
		return &QueryError{Operation: op.Name, Status: resp.StatusCode, Message: transportMessage(err), Err: err}
	}

	var envelope graphQLResponse
	decodeErr := json.Unmarshal(body, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && len(envelope.Errors) > 0 && envelope.Errors[0].Message != "" {
			msg = envelope.Errors[0].Message
		}
		return &QueryError{Operation: op.Name, Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &QueryError{Operation: op.Name, Message: "invalid JSON response: " + decodeErr.Error()}
	}
	if len(envelope.Errors) > 0 {
		msg := envelope.Errors[0].Message
		if msg == "" {
			msg = "GraphQL error"
		}
		return &QueryError{Operation: op.Name, Message: msg}
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return &QueryError{Operation: op.Name, Message: "response contained no data"}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &QueryError{Operation: op.Name, Message: fmt.Sprintf("decode data: %v", err)}
	}
	return nil
}

// Pets lists every pet across the account's households.
func (c *Client) Pets(ctx context.Context, cred Credential) ([]Pet, error) {
	var data struct {
		CurrentUser *struct {
			UserHouseholds []struct {
				Household *struct {
					Pets []Pet `json:"pets"`
				} `json:"household"`
			} `json:"userHouseholds"`
		} `json:"currentUser"`
	}
	if err := c.Query(ctx, cred, opPets, nil, &data); err != nil {
		return nil, err
	}
	if data.CurrentUser == nil {
		return nil, &QueryError{Operation: opPets.Name, Message: "currentUser missing from response"}
	}
	var pets []Pet
	for _, uh := range data.CurrentUser.UserHouseholds {
		if uh.Household == nil {
			continue
		}
		pets = append(pets, uh.Household.Pets...)
	}
	return pets, nil
}

// PetProfile fetches a single pet with its device.
func (c *Client) PetProfile(ctx context.Context, cred Credential, petID string) (Pet, error) {
	var data struct {
		Pet *Pet `json:"pet"`
	}
	if err := c.Query(ctx, cred, opPetProfile, map[string]any{"petId": petID}, &data); err != nil {
		return Pet{}, err
	}
	if data.Pet == nil {
		return Pet{}, &QueryError{Operation: opPetProfile.Name, Message: fmt.Sprintf("pet %s not found", petID)}
	}
	return *data.Pet, nil
}

// ActivitySummaries returns the current daily and weekly summaries; either may be nil.
func (c *Client) ActivitySummaries(ctx context.Context, cred Credential, petID string) (daily, weekly *ActivitySummary, err error) {
	var data struct {
		Pet *struct {
			DailyStat  *ActivitySummary `json:"dailyStat"`
			WeeklyStat *ActivitySummary `json:"weeklyStat"`
		} `json:"pet"`
	}
	if err := c.Query(ctx, cred, opActivity, map[string]any{"petId": petID}, &data); err != nil {
		return nil, nil, err
	}
	if data.Pet == nil {
		return nil, nil, &QueryError{Operation: opActivity.Name, Message: "pet missing from response"}
	}
	return data.Pet.DailyStat, data.Pet.WeeklyStat, nil
}

// OngoingActivity returns what the dog is doing right now, or nil.
func (c *Client) OngoingActivity(ctx context.Context, cred Credential, petID string) (OngoingActivity, error) {
	var data struct {
		Pet *struct {
			OngoingActivity json.RawMessage `json:"ongoingActivity"`
		} `json:"pet"`
	}
	if err := c.Query(ctx, cred, opLocation, map[string]any{"petId": petID}, &data); err != nil {
		return nil, err
	}
	if data.Pet == nil {
		return nil, &QueryError{Operation: opLocation.Name, Message: "pet missing from response"}
	}
	activity, err := DecodeOngoingActivity(data.Pet.OngoingActivity)
	if err != nil {
		return nil, &QueryError{Operation: opLocation.Name, Message: err.Error()}
	}
	return activity, nil
}

// RestSummaries returns up to limit daily rest summaries, newest first as the vendor orders them.
func (c *Client) RestSummaries(ctx context.Context, cred Credential, petID string, limit int) ([]RestSummary, error) {
	if limit <= 0 {
		limit = 1
	}
	var data struct {
		Pet *struct {
			RestSummaryFeed *struct {
				RestSummaries []RestSummary `json:"restSummaries"`
			} `json:"restSummaryFeed"`
		} `json:"pet"`
	}
	if err := c.Query(ctx, cred, opRest, map[string]any{"petId": petID, "limit": limit}, &data); err != nil {
		return nil, err
	}
	if data.Pet == nil {
		return nil, &QueryError{Operation: opRest.Name, Message: "pet missing from response"}
	}
	if data.Pet.RestSummaryFeed == nil {
		return nil, nil
	}
	return data.Pet.RestSummaryFeed.RestSummaries, nil
}

// Probe checks that the vendor answers at all. Any HTTP response counts as reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/graphql", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}
