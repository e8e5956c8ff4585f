// Package analyze groups extracted conversation records by user and derives
// per-user device profiles plus global distribution tallies.
package analyze

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/adk-sentryskin/creatio-analysis/internal/classify"
	"github.com/adk-sentryskin/creatio-analysis/internal/extract"
)

// UserProfile aggregates every record sharing one user identifier. Label
// slices hold distinct values in first-seen order; ConversationCount always
// equals the number of records that fed the profile.
type UserProfile struct {
	UserID            string      `json:"user_id"`
	ConversationCount int         `json:"conversation_count"`
	Devices           []string    `json:"devices"`
	Browsers          []string    `json:"browsers"`
	OperatingSystems  []string    `json:"operating_systems"`
	UserAgents        []string    `json:"user_agents"`
	FirstInteraction  time.Time   `json:"first_interaction"`
	LastInteraction   time.Time   `json:"last_interaction"`
	Timestamps        []time.Time `json:"all_timestamps,omitempty"`
}

// SampleUserAgent returns the first user agent seen for the profile.
func (p *UserProfile) SampleUserAgent() string {
	if len(p.UserAgents) == 0 {
		return ""
	}
	return p.UserAgents[0]
}

// Tallies are the global distributions across profiles. Label counts count
// users, not records: a user exhibiting a label on any of their agents counts
// once for that label.
type Tallies struct {
	TotalUsers        int            `json:"total_users"`
	TotalRecords      int            `json:"total_records"`
	Devices           map[string]int `json:"devices"`
	Browsers          map[string]int `json:"browsers"`
	OperatingSystems  map[string]int `json:"operating_systems"`
	MultiDeviceUsers  int            `json:"multi_device_users"`
	MultiBrowserUsers int            `json:"multi_browser_users"`
	MultiOSUsers      int            `json:"multi_os_users"`

	// Conversation count distribution buckets.
	SingleConversation int `json:"users_with_1_conversation"`
	TwoToFive          int `json:"users_with_2_5_conversations"`
	SixToTen           int `json:"users_with_6_10_conversations"`
	OverTen            int `json:"users_with_over_10_conversations"`
}

// Aggregate builds one profile per user identifier from records at or after
// start. Records without a chat or thread id are excluded. Profiles come back
// in first-seen user order.
func Aggregate(records []extract.Record, start time.Time) []*UserProfile {
	byUser := make(map[string]*UserProfile)
	var order []string
	kept := 0

	for _, rec := range records {
		if rec.Timestamp.Before(start) {
			continue
		}
		userID := rec.UserIdentifier()
		if userID == "" {
			continue
		}
		kept++

		profile, ok := byUser[userID]
		if !ok {
			profile = &UserProfile{UserID: userID}
			byUser[userID] = profile
			order = append(order, userID)
		}

		profile.ConversationCount++
		profile.Timestamps = append(profile.Timestamps, rec.Timestamp)
		if profile.FirstInteraction.IsZero() || rec.Timestamp.Before(profile.FirstInteraction) {
			profile.FirstInteraction = rec.Timestamp
		}
		if rec.Timestamp.After(profile.LastInteraction) {
			profile.LastInteraction = rec.Timestamp
		}

		if rec.UserAgent != "" && !contains(profile.UserAgents, rec.UserAgent) {
			profile.UserAgents = append(profile.UserAgents, rec.UserAgent)
		}
	}

	// Classify each distinct agent once per user.
	for _, userID := range order {
		profile := byUser[userID]
		for _, ua := range profile.UserAgents {
			profile.Devices = appendDistinct(profile.Devices, classify.Device(ua))
			profile.Browsers = appendDistinct(profile.Browsers, classify.Browser(ua))
			profile.OperatingSystems = appendDistinct(profile.OperatingSystems, classify.OS(ua))
		}
	}

	profiles := make([]*UserProfile, 0, len(order))
	for _, userID := range order {
		profiles = append(profiles, byUser[userID])
	}

	log.Info().Int("records", kept).Int("users", len(profiles)).Msg("Aggregated user profiles")
	return profiles
}

// Tally computes global distributions over a set of profiles.
func Tally(profiles []*UserProfile) Tallies {
	t := Tallies{
		TotalUsers:       len(profiles),
		Devices:          make(map[string]int),
		Browsers:         make(map[string]int),
		OperatingSystems: make(map[string]int),
	}

	for _, p := range profiles {
		t.TotalRecords += p.ConversationCount

		for _, d := range p.Devices {
			t.Devices[d]++
		}
		for _, b := range p.Browsers {
			t.Browsers[b]++
		}
		for _, o := range p.OperatingSystems {
			t.OperatingSystems[o]++
		}

		if len(p.Devices) > 1 {
			t.MultiDeviceUsers++
		}
		if len(p.Browsers) > 1 {
			t.MultiBrowserUsers++
		}
		if len(p.OperatingSystems) > 1 {
			t.MultiOSUsers++
		}

		switch {
		case p.ConversationCount == 1:
			t.SingleConversation++
		case p.ConversationCount <= 5:
			t.TwoToFive++
		case p.ConversationCount <= 10:
			t.SixToTen++
		default:
			t.OverTen++
		}
	}

	return t
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func appendDistinct(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}
