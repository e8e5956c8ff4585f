package creatio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/config"
)

// Lead is one CRM lead record with GUID-valued lookups resolved to display
// names. An unknown GUID passes through unresolved so it stays visible.
type Lead struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	MobilePhone      string `json:"mobile_phone"`
	CourseOfInterest string `json:"course_of_interest"`
	Language         string `json:"language"`
	BestWayToReach   string `json:"best_way_to_reach"`
	DesiredLocation  string `json:"desired_location"`
	ExternalID       string `json:"external_id"`
	ExternalMetadata string `json:"external_metadata"`
	FormSource       string `json:"form_source"`
	RegisterMethod   string `json:"register_method"`
	RegisterMethodID string `json:"register_method_id"`
	Status           string `json:"status"`
	CreatedOn        string `json:"created_on"`
	ModifiedOn       string `json:"modified_on"`
}

// rawLead mirrors the OData field names of the Lead entity set.
type rawLead struct {
	UsrFirstNameString                    string `json:"UsrFirstNameString"`
	UsrLastNameString                     string `json:"UsrLastNameString"`
	Email                                 string `json:"Email"`
	MobilePhone                           string `json:"MobilePhone"`
	UsrCourseOfInterestFromInitialOutreach string `json:"UsrCourseOfInterestFromInitialOutreach"`
	UsrLanguageLookupID                   string `json:"UsrLanguageLookupId"`
	UsrBestWayToReach                     string `json:"UsrBestWayToReach"`
	UsrDesiredLocatLookup2ID              string `json:"UsrDesiredLocatLookup2Id"`
	UsrIDExternal                         string `json:"UsrIDExternal"`
	UsrExternalMetadata                   string `json:"UsrExternalMetadata"`
	UsrFormSource                         string `json:"UsrFormSource"`
	RegisterMethodID                      string `json:"RegisterMethodId"`
	QualifyStatusID                       string `json:"QualifyStatusId"`
	CreatedOn                             string `json:"CreatedOn"`
	ModifiedOn                            string `json:"ModifiedOn"`
}

// LeadClient fetches leads from the Creatio OData API.
type LeadClient struct {
	odataURL   string
	tokens     *TokenProvider
	mappings   config.Mappings
	httpClient *http.Client
}

func NewLeadClient(odataURL string, tokens *TokenProvider, mappings config.Mappings, client *http.Client) *LeadClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &LeadClient{
		odataURL:   odataURL,
		tokens:     tokens,
		mappings:   mappings,
		httpClient: client,
	}
}

// FetchByCreatedSince fetches leads created on or after start (ISO-8601 UTC
// lower bound on CreatedOn).
func (c *LeadClient) FetchByCreatedSince(ctx context.Context, start time.Time) ([]Lead, error) {
	filter := fmt.Sprintf("CreatedOn ge %s", start.UTC().Format("2006-01-02T15:04:05Z"))
	return c.fetch(ctx, filter)
}

// FetchByRegisterMethod fetches leads whose RegisterMethod lookup equals the
// given GUID.
func (c *LeadClient) FetchByRegisterMethod(ctx context.Context, methodGUID string) ([]Lead, error) {
	filter := fmt.Sprintf("RegisterMethod/Id eq %s", methodGUID)
	return c.fetch(ctx, filter)
}

func (c *LeadClient) fetch(ctx context.Context, filter string) ([]Lead, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	reqURL := c.odataURL + "?" + url.Values{"$filter": {filter}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build leads request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ForceUseSession", "true")
	req.Header.Set("BPMCSRF", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leads: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read leads response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lead endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload struct {
		Value []rawLead `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse leads response: %w", err)
	}

	leads := make([]Lead, 0, len(payload.Value))
	for _, raw := range payload.Value {
		leads = append(leads, c.resolve(raw))
	}

	log.Info().Int("count", len(leads)).Str("filter", filter).Msg("Fetched leads")
	return leads, nil
}

func (c *LeadClient) resolve(raw rawLead) Lead {
	return Lead{
		FirstName:        raw.UsrFirstNameString,
		LastName:         raw.UsrLastNameString,
		Email:            raw.Email,
		MobilePhone:      raw.MobilePhone,
		CourseOfInterest: raw.UsrCourseOfInterestFromInitialOutreach,
		Language:         resolveGUID(c.mappings.Language, raw.UsrLanguageLookupID),
		BestWayToReach:   raw.UsrBestWayToReach,
		DesiredLocation:  resolveGUID(c.mappings.Location, raw.UsrDesiredLocatLookup2ID),
		ExternalID:       raw.UsrIDExternal,
		ExternalMetadata: raw.UsrExternalMetadata,
		FormSource:       raw.UsrFormSource,
		RegisterMethod:   resolveGUID(c.mappings.RegisterMethod, raw.RegisterMethodID),
		RegisterMethodID: raw.RegisterMethodID,
		Status:           resolveGUID(c.mappings.Status, raw.QualifyStatusID),
		CreatedOn:        raw.CreatedOn,
		ModifiedOn:       raw.ModifiedOn,
	}
}

func resolveGUID(mapping map[string]string, guid string) string {
	if name, ok := mapping[guid]; ok {
		return name
	}
	return guid
}
